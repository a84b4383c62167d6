// Package config loads settings for the relay and the terminal client.
// Priority: environment > YAML file > defaults. Outside production a .env
// file is read first; variables already set are never overridden.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chatverso/internal/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config/chatverso.yaml"

// Config holds both sides' settings; each binary reads what it needs.
type Config struct {
	// Relay
	ServerAddr         string
	CORSAllowedOrigins string
	RedisURL           string
	RedisMaxWait       time.Duration
	ReplyCacheSize     int
	MaxWSConnections   int
	WSSendBufferSize   int
	WSMaxMessageSize   int64
	WSRateLimitRPS     float64
	WSRateLimitBurst   int
	UpgradeRateRPS     float64
	UpgradeRateBurst   int
	MetricsEnabled     bool

	// Client
	ServerURL string
	Username  string

	LogLevel string
}

// yamlConfig mirrors the YAML file. Durations are seconds.
type yamlConfig struct {
	ServerAddr         string  `yaml:"server_addr"`
	CORSAllowedOrigins string  `yaml:"cors_allowed_origins"`
	RedisURL           string  `yaml:"redis_url"`
	RedisMaxWait       int     `yaml:"redis_max_wait"`
	ReplyCacheSize     int     `yaml:"reply_cache_size"`
	MaxWSConnections   int     `yaml:"max_ws_connections"`
	WSSendBufferSize   int     `yaml:"ws_send_buffer_size"`
	WSMaxMessageSize   int     `yaml:"ws_max_message_size"`
	WSRateLimitRPS     float64 `yaml:"ws_rate_limit_rps"`
	WSRateLimitBurst   int     `yaml:"ws_rate_limit_burst"`
	UpgradeRateRPS     float64 `yaml:"upgrade_rate_rps"`
	UpgradeRateBurst   int     `yaml:"upgrade_rate_burst"`
	MetricsEnabled     bool    `yaml:"metrics_enabled"`
	ServerURL          string  `yaml:"server_url"`
	Username           string  `yaml:"username"`
	LogLevel           string  `yaml:"log_level"`
}

func defaults() yamlConfig {
	return yamlConfig{
		ServerAddr:         ":5000",
		CORSAllowedOrigins: "*",
		RedisMaxWait:       60,
		ReplyCacheSize:     1000,
		MaxWSConnections:   10000,
		WSSendBufferSize:   256,
		WSMaxMessageSize:   4096,
		WSRateLimitRPS:     20,
		WSRateLimitBurst:   40,
		UpgradeRateRPS:     5,
		UpgradeRateBurst:   10,
		MetricsEnabled:     true,
		ServerURL:          "ws://localhost:5000/ws",
		LogLevel:           "info",
	}
}

// Load reads .env (non-production), then CONFIG_PATH or DefaultConfigPath,
// then the environment.
func Load() *Config {
	if os.Getenv("APP_ENV") != "production" {
		// a missing .env is normal
		_ = godotenv.Load()
	}

	yc := defaults()
	for _, path := range []string{os.Getenv("CONFIG_PATH"), DefaultConfigPath} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: parse %s: %v (using defaults)", path, err)
			yc = defaults()
		} else {
			logger.Infof("config: loaded %s", path)
		}
		break
	}

	cfg := &Config{
		ServerAddr:         envStr("SERVER_ADDR", yc.ServerAddr),
		CORSAllowedOrigins: envStr("CORS_ALLOWED_ORIGINS", yc.CORSAllowedOrigins),
		RedisURL:           envStr("REDIS_URL", yc.RedisURL),
		RedisMaxWait:       time.Duration(envInt("REDIS_MAX_WAIT", yc.RedisMaxWait)) * time.Second,
		ReplyCacheSize:     envInt("REPLY_CACHE_SIZE", yc.ReplyCacheSize),
		MaxWSConnections:   envInt("MAX_WS_CONNECTIONS", yc.MaxWSConnections),
		WSSendBufferSize:   envInt("WS_SEND_BUFFER_SIZE", yc.WSSendBufferSize),
		WSMaxMessageSize:   int64(envInt("WS_MAX_MESSAGE_SIZE", yc.WSMaxMessageSize)),
		WSRateLimitRPS:     envFloat("WS_RATE_LIMIT_RPS", yc.WSRateLimitRPS),
		WSRateLimitBurst:   envInt("WS_RATE_LIMIT_BURST", yc.WSRateLimitBurst),
		UpgradeRateRPS:     envFloat("UPGRADE_RATE_RPS", yc.UpgradeRateRPS),
		UpgradeRateBurst:   envInt("UPGRADE_RATE_BURST", yc.UpgradeRateBurst),
		MetricsEnabled:     envBool("METRICS_ENABLED", yc.MetricsEnabled),
		ServerURL:          envStr("SERVER_URL", yc.ServerURL),
		Username:           strings.TrimSpace(envStr("CHAT_USERNAME", yc.Username)),
		LogLevel:           envStr("LOG_LEVEL", yc.LogLevel),
	}
	if cfg.ReplyCacheSize <= 0 {
		cfg.ReplyCacheSize = 1000
	}

	if os.Getenv("APP_ENV") == "production" && (cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*") {
		logger.Errorf("config: set CORS_ALLOWED_ORIGINS in production (explicit origins, not *)")
	}
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
