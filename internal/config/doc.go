// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every field is optional except history.database when history is enabled;
// Default returns the configuration used when no file is given.
package config
