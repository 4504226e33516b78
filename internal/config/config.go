// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service needs.
type Config struct {
	Server ServerConfig
	Limits LimitsConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// LimitsConfig bounds the session registry. Values arrive as integers in
// the environment; timeouts are given in minutes.
type LimitsConfig struct {
	MaxConcurrentSessions int
	MaxUsersPerSession    int
	SessionTimeout        time.Duration
	ScrumMasterGrace      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	limits, err := loadLimitsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Limits: limits}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); raw != "" {
		origins = origins[:0]
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

func loadLimitsConfig() (LimitsConfig, error) {
	maxSessions, err := parsePositiveIntEnv("MAX_CONCURRENT_SESSIONS", 3)
	if err != nil {
		return LimitsConfig{}, err
	}
	maxUsers, err := parsePositiveIntEnv("MAX_USERS_PER_SESSION", 16)
	if err != nil {
		return LimitsConfig{}, err
	}
	timeoutMinutes, err := parsePositiveIntEnv("SESSION_TIMEOUT_MINUTES", 10)
	if err != nil {
		return LimitsConfig{}, err
	}
	graceMinutes, err := parsePositiveIntEnv("SCRUM_MASTER_GRACE_PERIOD_MINUTES", 5)
	if err != nil {
		return LimitsConfig{}, err
	}

	return LimitsConfig{
		MaxConcurrentSessions: maxSessions,
		MaxUsersPerSession:    maxUsers,
		SessionTimeout:        time.Duration(timeoutMinutes) * time.Minute,
		ScrumMasterGrace:      time.Duration(graceMinutes) * time.Minute,
	}, nil
}

func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, val)
	}
	return val, nil
}
