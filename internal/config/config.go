package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Transport struct {
		// Kind selects the delivery channel: "smtp" or "telegram".
		Kind string `yaml:"kind"`
	} `yaml:"transport"`

	Email struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"email"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`

	Scheduler struct {
		IntervalSeconds    int     `yaml:"interval_seconds"`
		MaxConcurrentSends int     `yaml:"max_concurrent_sends"`
		SendRatePerSecond  float64 `yaml:"send_rate_per_second"`
		SendBurst          int     `yaml:"send_burst"`
		SendTimeoutSeconds int     `yaml:"send_timeout_seconds"`
	} `yaml:"scheduler"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
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
		cfg.Database.Path = "data/habitping.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = "smtp"
	}
	if cfg.Transport.Kind != "smtp" && cfg.Transport.Kind != "telegram" {
		return nil, fmt.Errorf("unknown transport.kind %q", cfg.Transport.Kind)
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = 587
	}

	return &cfg, nil
}

// SweepInterval returns the polling interval, defaulting to one minute.
func (c *Config) SweepInterval() time.Duration {
	if c.Scheduler.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// MaxConcurrentSends bounds parallel dispatches within one sweep.
func (c *Config) MaxConcurrentSends() int {
	if c.Scheduler.MaxConcurrentSends <= 0 {
		return 10
	}
	return c.Scheduler.MaxConcurrentSends
}

// SendRate returns the outbound rate limit in sends per second.
func (c *Config) SendRate() float64 {
	if c.Scheduler.SendRatePerSecond <= 0 {
		return 5
	}
	return c.Scheduler.SendRatePerSecond
}

// SendBurst returns the rate limiter burst size.
func (c *Config) SendBurst() int {
	if c.Scheduler.SendBurst <= 0 {
		return 10
	}
	return c.Scheduler.SendBurst
}

// SendTimeout bounds a single dispatch call.
func (c *Config) SendTimeout() time.Duration {
	if c.Scheduler.SendTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Scheduler.SendTimeoutSeconds) * time.Second
}

// BackupInterval returns the time between database backups.
func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

// LockTTL is the lifetime of the cross-instance sweep lock.
func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 2 * c.SweepInterval()
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}
