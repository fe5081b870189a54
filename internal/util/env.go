// Package util holds small environment helpers shared by config loading.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// Getenv returns the trimmed value of key, or def when it is unset or blank.
func Getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ParseBool reads a yes/no switch. ok is false for anything unrecognized.
func ParseBool(value string) (v, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "si", "sí":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

// ParseBoolEnv reads key with ParseBool. Unset or unrecognized values yield def.
func ParseBoolEnv(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, ok := ParseBool(raw)
	if !ok {
		slog.Warn("ParseBoolEnv: unrecognized boolean, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}
