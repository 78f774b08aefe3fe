package config

import "errors"

var (
	ErrNilConfig   = errors.New("config target cannot be nil")
	ErrParseFailed = errors.New("failed to parse environment variables")
)
