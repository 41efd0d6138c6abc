package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 5174
	defaultEnv        = "development"

	defaultBackendURL       = "http://localhost:5000"
	defaultAPIPrefix        = "/api"
	defaultReconnectSeconds = 5
	defaultRefreshSeconds   = 60

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0
	defaultProfile   = "default"
)
