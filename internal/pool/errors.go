package pool

import "errors"

var (
	ErrEmptyPool     = errors.New("server pool is empty")
	ErrNotFound      = errors.New("server not found")
	ErrDuplicateID   = errors.New("duplicate server id")
	ErrInvalidWeight = errors.New("server weight must be at least 1")
)
