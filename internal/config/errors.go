package config

import "errors"

// ErrConfig marks a fatal configuration error (spec §7 ConfigError).
var ErrConfig = errors.New("config error")
