package config

import _ "embed"

// DefaultConfigYAML is the embedded default configuration. External config
// files and EXPENSES_* environment variables override it.
//
//go:embed config.default.yaml
var DefaultConfigYAML []byte
