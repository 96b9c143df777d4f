package config

import (
	"os"
	"strconv"
	"time"
)

// DateLayout is the calendar-day layout used by the Fitbit API and the output file names.
const DateLayout = "2006-01-02"

// GetEnv returns the environment variable value for key, or def if unset or empty.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt returns the environment variable value for key parsed as int, or def if unset or invalid.
func GetEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// GetEnvBool returns the environment variable value for key parsed as bool, or def if unset or invalid.
func GetEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}

// GetEnvDuration returns the environment variable value for key parsed as time.Duration, or def if unset or invalid.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

// GetEnvDate returns the environment variable value for key if it parses as a
// YYYY-MM-DD date, otherwise def. An empty def means "no date".
func GetEnvDate(key, def string) string {
	if val := os.Getenv(key); val != "" {
		if _, err := time.Parse(DateLayout, val); err == nil {
			return val
		}
	}
	return def
}
