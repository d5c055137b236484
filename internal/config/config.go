package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"assetbook/internal/store"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup store.BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Port            int     `yaml:"port"`
		RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
		RateBurst       int     `yaml:"rate_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		GuardTTLSeconds int `yaml:"guard_ttl_seconds"`
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"booking"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
	} `yaml:"sheets"`

	Report struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"report"`

	Audit struct {
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/assetbook.db"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8081
	}
	if cfg.Monitoring.PrometheusPort == 0 {
		cfg.Monitoring.PrometheusPort = 9091
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "reports"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GuardTTL is how long a booking write lock may be held before it expires.
func (c *Config) GuardTTL() time.Duration {
	if c.Booking.GuardTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Booking.GuardTTLSeconds) * time.Second
}

// CacheTTL is the lifetime of cached calendar and availability views.
func (c *Config) CacheTTL() time.Duration {
	if c.Booking.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Booking.CacheTTLSeconds) * time.Second
}
