// Package config loads the daemon configuration from a JSON or YAML file with
// OPENMCP_ prefixed environment overrides, then fills defaults relative to the
// file's directory.
package config
