package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"` // "development" | "production"
	Backend        BackendConfig      `yaml:"backend"`
	Push           PushConfig         `yaml:"push"`
	Sync           SyncConfig         `yaml:"sync"`
	Redis          RedisRuntimeConfig `yaml:"redis"`
	RedisURL       string             `yaml:"-"`
	Auth           AuthConfig         `yaml:"auth"`
	Notify         NotifyConfig       `yaml:"notify"`
	Paths          RuntimePathsConfig `yaml:"paths"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	AccessToken    string             `yaml:"access_token"`
	Timezone       string             `yaml:"timezone"`
}

type BackendConfig struct {
	URL            string `yaml:"url"`
	APIPrefix      string `yaml:"api_prefix"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 0 = no client timeout
}

type PushConfig struct {
	URL              string `yaml:"url"` // defaults to backend.url
	Disable          bool   `yaml:"disable"`
	ReconnectSeconds int    `yaml:"reconnect_seconds"`
}

type SyncConfig struct {
	RefreshIntervalSeconds int  `yaml:"refresh_interval_seconds"` // 0 disables the periodic refresh
	DisablePeriodic        bool `yaml:"disable_periodic"`
}

type RedisRuntimeConfig struct {
	Enable   bool              `yaml:"enable"`
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// AuthConfig optionally logs in on startup. Profile namespaces persisted sessions.
type AuthConfig struct {
	Profile  string `yaml:"profile"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// NotifyConfig enables phone notifications for finished jobs.
type NotifyConfig struct {
	Bark BarkConfig `yaml:"bark"`
}

type BarkConfig struct {
	Key    string `yaml:"key"`
	Server string `yaml:"server"` // defaults to the public Bark server
	Group  string `yaml:"group"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}
