package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func baseEnv() mapEnv {
	return mapEnv{
		"BACKEND_BASE_URL": "https://api.example.com",
		"SESSION_SECRET":   "s3cret",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(baseEnv())
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected release mode, got %q", cfg.GinMode)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %v", cfg.PollInterval)
	}
	if cfg.SessionExpiry != 7*24*time.Hour {
		t.Fatalf("unexpected session expiry: %v", cfg.SessionExpiry)
	}
	if cfg.MediaCacheTTL != time.Minute {
		t.Fatalf("unexpected media cache ttl: %v", cfg.MediaCacheTTL)
	}
}

func TestLoadConfigRequiredValues(t *testing.T) {
	env := baseEnv()
	delete(env, "BACKEND_BASE_URL")
	if _, err := LoadConfigFromEnv(env); err == nil {
		t.Fatal("expected error for missing BACKEND_BASE_URL")
	}

	env = baseEnv()
	delete(env, "SESSION_SECRET")
	if _, err := LoadConfigFromEnv(env); err == nil {
		t.Fatal("expected error for missing SESSION_SECRET")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "8443"
	env["GIN_MODE"] = "debug"
	env["POLL_INTERVAL_SECONDS"] = "10"
	env["SESSION_EXPIRY_SECONDS"] = "3600"
	env["MEDIA_CACHE_TTL_SECONDS"] = "300"
	env["TLS_CERT_FILE"] = "cert.pem"
	env["TLS_KEY_FILE"] = "key.pem"

	cfg, err := LoadConfigFromEnv(env)
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Port != 8443 || cfg.GinMode != "debug" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.PollInterval != 10*time.Second || cfg.SessionExpiry != time.Hour || cfg.MediaCacheTTL != 5*time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.TLSCertFile != "cert.pem" || cfg.TLSKeyFile != "key.pem" {
		t.Fatalf("unexpected TLS files: %+v", cfg)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                    "notaport",
		"POLL_INTERVAL_SECONDS":   "0",
		"SESSION_EXPIRY_SECONDS":  "-1",
		"MEDIA_CACHE_TTL_SECONDS": "abc",
	}
	for key, value := range cases {
		env := baseEnv()
		env[key] = value
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for %s=%s", key, value)
		}
	}
}
