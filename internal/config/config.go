// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the OD service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	UploadDir   string

	// RequireDateMatch makes the internship-period check part of the
	// document verification verdict. Off by default: the check is still
	// computed and shown to reviewers.
	RequireDateMatch bool

	// AlertIntervalHours is how often the unassigned-mentor sweep runs.
	AlertIntervalHours int
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("OD_PORT")
	if port == "" {
		port = "8083"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	requireDateMatch := false
	if v := os.Getenv("REQUIRE_DATE_MATCH"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("REQUIRE_DATE_MATCH must be a boolean, got %q", v)
		}
		requireDateMatch = parsed
	}

	alertInterval := 24
	if v := os.Getenv("ALERT_INTERVAL_HOURS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("ALERT_INTERVAL_HOURS must be a positive integer, got %q", v)
		}
		alertInterval = parsed
	}

	return &Config{
		Port:               port,
		DatabaseURL:        dbURL,
		RedisURL:           redisURL,
		UploadDir:          uploadDir,
		RequireDateMatch:   requireDateMatch,
		AlertIntervalHours: alertInterval,
	}, nil
}
