package config

import "strings"

func normalizeBackendConfig(cfg BackendConfig) BackendConfig {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		cfg.URL = defaultBackendURL
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.APIPrefix), "/")
	if prefix == "" {
		cfg.APIPrefix = ""
	} else {
		cfg.APIPrefix = "/" + prefix
	}
	return cfg
}

func normalizePushConfig(cfg PushConfig, backendURL string) PushConfig {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		cfg.URL = backendURL
	}
	if cfg.ReconnectSeconds <= 0 {
		cfg.ReconnectSeconds = defaultReconnectSeconds
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.Scheme = strings.ToLower(strings.TrimSpace(cfg.Scheme))

	if cfg.Host == "" && cfg.URL == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.Scheme == "" {
		if cfg.TLS {
			cfg.Scheme = "rediss"
		} else {
			cfg.Scheme = "redis"
		}
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeAuthConfig(cfg AuthConfig) AuthConfig {
	cfg.Profile = strings.TrimSpace(cfg.Profile)
	if cfg.Profile == "" {
		cfg.Profile = defaultProfile
	}
	cfg.Email = strings.TrimSpace(cfg.Email)
	return cfg
}

func normalizeNotifyConfig(cfg NotifyConfig) NotifyConfig {
	cfg.Bark.Key = strings.TrimSpace(cfg.Bark.Key)
	cfg.Bark.Server = strings.TrimRight(strings.TrimSpace(cfg.Bark.Server), "/")
	cfg.Bark.Group = strings.TrimSpace(cfg.Bark.Group)
	if cfg.Bark.Group == "" {
		cfg.Bark.Group = "studio"
	}
	return cfg
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func normalizeRuntimePaths(paths RuntimePathsConfig) RuntimePathsConfig {
	paths.Logs = strings.TrimSpace(paths.Logs)
	return paths
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
