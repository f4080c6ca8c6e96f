// Package util holds small helpers shared by the OnboardPipe entrypoint.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable. Accepted values are
// true/1/yes/on and false/0/no/off, case-insensitive; an unset variable or
// anything unrecognized yields the default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("util: invalid boolean environment value, using default", "key", key, "value", raw, "default", defaultValue)
	return defaultValue
}
