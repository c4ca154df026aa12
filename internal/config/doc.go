// Package config loads, validates, and normalizes uhfremux configuration.
//
// Values come from three layers, lowest precedence first: repository
// defaults, an optional TOML file, and the environment variables the
// recorder deployments already export. Path fields are expanded and made
// absolute during load so downstream code never handles relative or
// tilde-prefixed paths.
package config
