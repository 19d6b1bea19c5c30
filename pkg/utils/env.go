package utils

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lynkr-ai/lynkr-go-sdk/keys"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// GetEnv retrieves an environment variable or returns a default value if not set
func GetEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// ExpandEnvVars expands ${VAR} references. Substituted values of variables
// that look like credentials are logged masked at debug level.
func ExpandEnvVars(s string) string {
	for _, m := range envRef.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if !isSecretName(name) {
			continue
		}
		if val := os.Getenv(name); val != "" {
			logrus.Debugf("Substituting %s -> %s", m[0], keys.MaskSecret(val))
		}
	}
	return os.ExpandEnv(s)
}

func isSecretName(name string) bool {
	n := strings.ToUpper(name)
	return strings.Contains(n, "KEY") || strings.Contains(n, "TOKEN") || strings.Contains(n, "SECRET")
}

// BoolFromEnv converts an environment variable to a boolean
// "true", "yes", "1", "on" are considered true (case-insensitive)
// Any other value is considered false
func BoolFromEnv(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	val = strings.ToLower(val)
	return val == "true" || val == "yes" || val == "1" || val == "on"
}

// DurationFromEnv reads a duration. Plain integers are taken as seconds.
func DurationFromEnv(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	logrus.Warnf("Invalid duration in %s: %s", key, val)
	return defaultVal
}
