package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           int
	GinMode        string
	BackendBaseURL string
	SessionSecret  string
	SessionExpiry  time.Duration
	PollInterval   time.Duration
	MediaCacheTTL  time.Duration
	TLSCertFile    string
	TLSKeyFile     string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:          3000,
		GinMode:       "release",
		SessionExpiry: 7 * 24 * time.Hour,
		PollInterval:  3 * time.Second,
		MediaCacheTTL: time.Minute,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.BackendBaseURL = env.Getenv("BACKEND_BASE_URL")
	if cfg.BackendBaseURL == "" {
		return Config{}, fmt.Errorf("BACKEND_BASE_URL is required")
	}

	cfg.SessionSecret = env.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	if raw := env.Getenv("SESSION_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid SESSION_EXPIRY_SECONDS")
		}
		cfg.SessionExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("POLL_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL_SECONDS")
		}
		cfg.PollInterval = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("MEDIA_CACHE_TTL_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid MEDIA_CACHE_TTL_SECONDS")
		}
		cfg.MediaCacheTTL = time.Duration(seconds) * time.Second
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	return cfg, nil
}
