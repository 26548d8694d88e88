package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	HTTPAddr      string         `yaml:"http_addr"`
	Database      DatabaseConfig `yaml:"database"`
	Redis         RedisConfig    `yaml:"redis"`
	SMTP          SMTPConfig     `yaml:"smtp"`
	TelegramToken string         `yaml:"telegram_token"`
	Reminder      ReminderConfig `yaml:"reminder"`
	Logger        LoggerConfig   `yaml:"logger"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

// RedisConfig is optional; an empty URL disables the distributed job lease.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig is optional; without a host reminders are only logged.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ReminderConfig struct {
	Timezone         string        `yaml:"timezone"`
	DeadlineAt       string        `yaml:"deadline_at"`
	DeadlineEvery    time.Duration `yaml:"deadline_every"`
	DigestAt         string        `yaml:"digest_at"`
	SweepAt          string        `yaml:"sweep_at"`
	RetentionDays    int           `yaml:"retention_days"`
	DigestOncePerDay bool          `yaml:"digest_once_per_day"`
	JobTimeout       time.Duration `yaml:"job_timeout"`

	Location *time.Location `yaml:"-"`
}

type LoggerConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// Load reads configuration from .env, an optional YAML file named by CONFIG_FILE
// and the environment, in that order of increasing precedence.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "deadline_tracker.db",
		},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: 15 * time.Second,
		},
		Reminder: ReminderConfig{
			Timezone:         "Local",
			DeadlineAt:       "17:30",
			DigestAt:         "18:15",
			SweepAt:          "02:00",
			RetentionDays:    90,
			DigestOncePerDay: true,
			JobTimeout:       5 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// loadFile overlays YAML settings, expanding ${VAR} placeholders from the environment.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		content = strings.ReplaceAll(content, "${"+pair[0]+"}", pair[1])
	}

	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getString("HTTP_ADDR", cfg.HTTPAddr)

	cfg.Database.Driver = strings.ToLower(getString("DATABASE_DRIVER", cfg.Database.Driver))
	cfg.Database.URL = getString("DATABASE_URL", cfg.Database.URL)

	cfg.Redis.URL = getString("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getInt("REDIS_DB", cfg.Redis.DB)

	cfg.SMTP.Host = getString("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getString("EMAIL_USER", cfg.SMTP.Username)
	cfg.SMTP.Password = getString("EMAIL_PASS", cfg.SMTP.Password)
	cfg.SMTP.From = getString("EMAIL_FROM", cfg.SMTP.From)
	cfg.SMTP.Timeout = getDuration("SMTP_TIMEOUT", cfg.SMTP.Timeout)
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	cfg.TelegramToken = getString("TELEGRAM_TOKEN", cfg.TelegramToken)

	cfg.Reminder.Timezone = getString("REMINDER_TIMEZONE", cfg.Reminder.Timezone)
	cfg.Reminder.DeadlineAt = getString("REMINDER_DEADLINE_AT", cfg.Reminder.DeadlineAt)
	cfg.Reminder.DeadlineEvery = getDuration("REMINDER_DEADLINE_EVERY", cfg.Reminder.DeadlineEvery)
	cfg.Reminder.DigestAt = getString("REMINDER_DIGEST_AT", cfg.Reminder.DigestAt)
	cfg.Reminder.SweepAt = getString("REMINDER_SWEEP_AT", cfg.Reminder.SweepAt)
	cfg.Reminder.RetentionDays = getInt("REMINDER_RETENTION_DAYS", cfg.Reminder.RetentionDays)
	cfg.Reminder.DigestOncePerDay = getBool("REMINDER_DIGEST_ONCE_PER_DAY", cfg.Reminder.DigestOncePerDay)
	cfg.Reminder.JobTimeout = getDuration("REMINDER_JOB_TIMEOUT", cfg.Reminder.JobTimeout)

	cfg.Logger.Level = getString("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Encoding = getString("LOG_ENCODING", cfg.Logger.Encoding)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}

	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", c.Reminder.Timezone, err)
	}
	c.Reminder.Location = loc

	for name, value := range map[string]string{
		"REMINDER_DEADLINE_AT": c.Reminder.DeadlineAt,
		"REMINDER_DIGEST_AT":   c.Reminder.DigestAt,
		"REMINDER_SWEEP_AT":    c.Reminder.SweepAt,
	} {
		if _, err := time.Parse("15:04", value); err != nil {
			return fmt.Errorf("invalid %s %q, expected HH:MM", name, value)
		}
	}

	if c.Reminder.DeadlineEvery < 0 {
		return fmt.Errorf("REMINDER_DEADLINE_EVERY must not be negative")
	}

	if c.Reminder.RetentionDays <= 0 {
		return fmt.Errorf("REMINDER_RETENTION_DAYS must be positive")
	}
	return nil
}

// Retention returns the ledger retention window.
func (c ReminderConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// MailEnabled reports whether SMTP credentials were provided.
func (c SMTPConfig) MailEnabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

func getString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
