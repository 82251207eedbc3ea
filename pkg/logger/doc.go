// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package, emitting JSON in production and
// text elsewhere, and can write to a size-rotated file instead of stdout.
package logger
