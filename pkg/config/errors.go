package config

import "errors"

var (
	// ErrParsingConfig is returned when the environment or a file cannot be decoded into the config struct
	ErrParsingConfig = errors.New("failed to parse config")

	// ErrConfigNotLoaded is returned when a config type could not be served from the cache
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer is returned when a nil pointer is provided to a loader
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	ErrLoadingEnvFile = errors.New("failed to load env file")
	ErrMissingPath    = errors.New("config file path is empty")
	ErrReadingFile    = errors.New("failed to read config file")
)
