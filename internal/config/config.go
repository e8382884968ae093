package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string       `yaml:"discord_token"`
	DatabasePath      string       `yaml:"database_path"`
	LogLevel          string       `yaml:"log_level"`
	DefaultLanguage   string       `yaml:"default_language"`
	DefaultLogChannel string       `yaml:"default_log_channel"`
	WarnExpireDays    int          `yaml:"warn_expire_days"`
	Health            HealthConfig `yaml:"health"`
	Sweep             SweepConfig  `yaml:"sweep"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SweepConfig struct {
	BanIntervalSeconds  int `yaml:"ban_interval_seconds"`
	WarnIntervalSeconds int `yaml:"warn_interval_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:      "/data/warden.db",
		LogLevel:          "info",
		DefaultLanguage:   "en",
		DefaultLogChannel: "",
		WarnExpireDays:    3,
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Sweep:             SweepConfig{BanIntervalSeconds: 15, WarnIntervalSeconds: 3600},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.WarnExpireDays < 1 {
		cfg.WarnExpireDays = 1
	}
	if cfg.Sweep.BanIntervalSeconds < 1 {
		cfg.Sweep.BanIntervalSeconds = 15
	}
	if cfg.Sweep.WarnIntervalSeconds < 1 {
		cfg.Sweep.WarnIntervalSeconds = 3600
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLanguage = envString("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.WarnExpireDays = envInt("WARN_EXPIRE_DAYS", cfg.WarnExpireDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Sweep.BanIntervalSeconds = envInt("SWEEP_BAN_INTERVAL_SECONDS", cfg.Sweep.BanIntervalSeconds)
	cfg.Sweep.WarnIntervalSeconds = envInt("SWEEP_WARN_INTERVAL_SECONDS", cfg.Sweep.WarnIntervalSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
