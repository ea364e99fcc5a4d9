// Package config reads console settings from the environment. Everything has
// a workable default; environment variables exist for scripting and for
// pointing the console at a non-standard gateway without touching saved
// state.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// ConsoleConfig holds runtime configuration for the console.
type ConsoleConfig struct {
	LogLevel       string
	LogFormat      string
	GatewayURL     string
	Token          string
	StatePath      string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	NoColor        bool
}

// LoadConsoleConfig constructs a ConsoleConfig from environment variables.
// GatewayURL and Token override the active environment's saved values when
// set, which keeps scripted runs independent of local state.
func LoadConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		LogLevel:       GetString("ORBIT_LOG_LEVEL", "warn"),
		LogFormat:      GetString("ORBIT_LOG_FORMAT", "text"),
		GatewayURL:     GetString("ORBIT_GATEWAY_URL", ""),
		Token:          GetString("ORBIT_TOKEN", ""),
		StatePath:      GetString("ORBIT_STATE_FILE", ""),
		RequestTimeout: time.Duration(GetInt("ORBIT_REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		PollInterval:   time.Duration(GetInt("ORBIT_POLL_SECONDS", 10)) * time.Second,
		NoColor:        GetBool("ORBIT_NO_COLOR", false),
	}
}
