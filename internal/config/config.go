// Package config centralizes environment-driven settings for the mock backend.
package config

import (
	"os"
	"time"
)

// Config holds runtime settings. Everything has a default so the server runs
// with no environment at all, which is how the test harness starts it.
type Config struct {
	Port       string        // HTTP listen port
	Env        string        // "development", "ci", ...
	Version    string        // reported by /health
	SessionTTL time.Duration // 0 = sessions never expire (original behavior)
}

// Load reads configuration from the environment with defaults.
func Load() Config {
	return Config{
		Port:       getEnv("PORT", "8080"),
		Env:        getEnv("ENV", "development"),
		Version:    getEnv("VERSION", "1.0.0"),
		SessionTTL: getDuration("SESSION_TTL", 0),
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// getDuration parses a Go duration string ("30m", "24h"). Unset or malformed
// values fall back to the default rather than failing startup.
func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
