package config

import (
	"bytes"
	"fmt"
	neturl "net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at configPath, applies defaults and validates it.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content into a normalized AppConfig. Unknown keys are rejected.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Backend: BackendConfig{
			URL:       defaultBackendURL,
			APIPrefix: defaultAPIPrefix,
		},
		Push: PushConfig{
			ReconnectSeconds: defaultReconnectSeconds,
		},
		Sync: SyncConfig{
			RefreshIntervalSeconds: defaultRefreshSeconds,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Auth: AuthConfig{
			Profile: defaultProfile,
		},
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Backend = normalizeBackendConfig(cfg.Backend)
	cfg.Push = normalizePushConfig(cfg.Push, cfg.Backend.URL)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Auth = normalizeAuthConfig(cfg.Auth)
	cfg.Notify = normalizeNotifyConfig(cfg.Notify)
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
}

func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if err := validateHTTPURL("backend.url", cfg.Backend.URL); err != nil {
		return err
	}
	if !cfg.Push.Disable {
		if err := validateHTTPURL("push.url", cfg.Push.URL); err != nil {
			return err
		}
	}
	if cfg.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("invalid backend.timeout_seconds %d, expected >= 0", cfg.Backend.TimeoutSeconds)
	}
	if cfg.Sync.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("invalid sync.refresh_interval_seconds %d, expected >= 0", cfg.Sync.RefreshIntervalSeconds)
	}
	if cfg.Notify.Bark.Server != "" {
		if err := validateHTTPURL("notify.bark.server", cfg.Notify.Bark.Server); err != nil {
			return err
		}
	}
	if cfg.Redis.Enable {
		if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
		}
		if cfg.Redis.DB < 0 {
			return fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q, expected http(s) scheme", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q, missing host", field, raw)
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "development"
}

func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// BackendTimeout returns the per-request timeout for backend calls; 0 means none.
func (c *AppConfig) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *AppConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.Push.ReconnectSeconds) * time.Second
}

// RefreshInterval returns the periodic refresh interval; 0 means disabled.
func (c *AppConfig) RefreshInterval() time.Duration {
	if c.Sync.DisablePeriodic {
		return 0
	}
	return time.Duration(c.Sync.RefreshIntervalSeconds) * time.Second
}
