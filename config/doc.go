// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the initial server pool, the
// selection strategy, logging, metrics and the settings of the simulated
// workload driven by the demo binary.
package config
