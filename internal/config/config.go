// File: internal/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const DefaultKIEBaseURL = "https://api.kie.ai"

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"PORT, overwrite"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL, overwrite"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT, overwrite"` // json|console
	Sampling bool   `yaml:"sampling"`                           // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL, overwrite"`
	MaxConns int32  `yaml:"max_conns"`
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET, overwrite"`
	ServiceRoleKey string `yaml:"service_role_key" env:"SUPABASE_SERVICE_ROLE_KEY, overwrite"`
}

type KIEConfig struct {
	BaseURL         string        `yaml:"base_url" env:"KIE_BASE_URL, overwrite"`
	APIKey          string        `yaml:"api_key" env:"KIE_API_KEY, overwrite"`
	StatusTimeout   time.Duration `yaml:"status_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL, overwrite"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD, overwrite"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type StorageConfig struct {
	Bucket          string        `yaml:"bucket" env:"S3_BUCKET, overwrite"`
	Region          string        `yaml:"region" env:"S3_REGION, overwrite"`
	Endpoint        string        `yaml:"endpoint" env:"S3_ENDPOINT, overwrite"` // S3-compatible endpoints (Supabase storage, MinIO)
	AccessKeyID     string        `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID, overwrite"`
	SecretAccessKey string        `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY, overwrite"`
	SignedURLTTL    time.Duration `yaml:"signed_url_ttl"`
}

type RateLimitConfig struct {
	StatusPerMinute int `yaml:"status_per_minute"` // 0 disables
}

type SyncConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	Batch      int           `yaml:"batch"`
	Workers    int           `yaml:"workers"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	KIE       KIEConfig       `yaml:"kie"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sync      SyncConfig      `yaml:"sync"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	Runtime RuntimeConfig `yaml:"-"`
}

// StorageEnabled reports whether outputs can be mirrored into object storage.
func (c *Config) StorageEnabled() bool {
	return c.Storage.Bucket != "" && c.Storage.Region != ""
}

// LoadConfig reads the YAML file at path (optional when every required value
// comes from the environment), overlays environment variables and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.KIE.BaseURL = SanitizeKIEBaseURL(cfg.KIE.BaseURL)

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 60 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.KIE.StatusTimeout <= 0 {
		cfg.KIE.StatusTimeout = 10 * time.Second
	}
	if cfg.KIE.DownloadTimeout <= 0 {
		cfg.KIE.DownloadTimeout = 10 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Storage.SignedURLTTL <= 0 {
		cfg.Storage.SignedURLTTL = time.Hour
	}
	if cfg.Sync.Interval <= 0 {
		cfg.Sync.Interval = time.Minute
	}
	if cfg.Sync.StaleAfter <= 0 {
		cfg.Sync.StaleAfter = 2 * time.Minute
	}
	if cfg.Sync.Batch <= 0 {
		cfg.Sync.Batch = 200
	}
	if cfg.Sync.Workers <= 0 {
		cfg.Sync.Workers = 4
	}
}

func (c *Config) validate() error {
	if c.KIE.APIKey == "" {
		return errors.New("kie.api_key is required")
	}
	if strings.TrimSpace(c.KIE.BaseURL) == "" {
		return errors.New("kie.base_url is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.ServiceRoleKey == "" {
		return errors.New("auth.service_role_key is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	return nil
}

// SanitizeKIEBaseURL reduces raw to scheme://host. Website hosts and
// documentation/dashboard paths are replaced with the public API host.
func SanitizeKIEBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultKIEBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return DefaultKIEBaseURL
	}
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, "kie.ai") && !strings.HasPrefix(host, "api.") {
		return DefaultKIEBaseURL
	}
	p := strings.ToLower(u.Path)
	for _, bad := range []string{"/api-key", "/docs", "/market"} {
		if strings.Contains(p, bad) {
			return DefaultKIEBaseURL
		}
	}
	return u.Scheme + "://" + u.Host
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
