// Package config provides configuration loading and validation for the
// transcript server. It handles YAML-based configuration with struct
// validation and environment variable expansion for secrets.
package config
