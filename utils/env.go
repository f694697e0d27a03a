// utils/env.go
package utils

import (
	"log"
	"os"
	"strconv"
	"time"
)

// EnvInt reads an integer env var, falling back to def when unset or
// unparseable (a bad value is logged, not fatal — tunables have safe defaults).
func EnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return v
}

// EnvSeconds reads an integer env var expressed in seconds as a Duration.
func EnvSeconds(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		log.Printf("⚠️  invalid %s=%q, using default %s", key, raw, def)
		return def
	}
	return time.Duration(v) * time.Second
}

// MustEnv reads a required env var and aborts startup when it is missing.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s environment variable not set", key)
	}
	return v
}
