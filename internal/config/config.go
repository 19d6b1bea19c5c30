package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lynkr-ai/lynkr-go-sdk/config"
	"github.com/lynkr-ai/lynkr-go-sdk/keys"
	"github.com/lynkr-ai/lynkr-go-sdk/pkg/utils"
)

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(path string, logger *logrus.Logger) (*config.AppConfig, error) {
	cfg := config.DefaultConfig()

	if path == "" {
		applyEnvironmentOverrides(cfg, logger)
		return cfg, validateConfig(cfg)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Configuration file %s not found, using defaults", path)
		// Still apply environment overrides even with defaults
		applyEnvironmentOverrides(cfg, logger)
		return cfg, validateConfig(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration
	expanded := utils.ExpandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvironmentOverrides(cfg, logger)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file. The file may hold
// secrets, so it is written owner-only.
func SaveConfig(cfg *config.AppConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// RegisterKeys loads configured service keys into the manager. Entries with
// an empty secret (typically an unset ${VAR}) are skipped.
func RegisterKeys(m *keys.Manager, entries []config.KeyConfig, logger *logrus.Logger) int {
	registered := 0
	for _, entry := range entries {
		if strings.TrimSpace(entry.Secret) == "" {
			logger.WithField("service", entry.Service).Warn("Skipping key with empty secret")
			continue
		}
		m.Register(entry.Service, entry.Secret, entry.Aliases...)
		registered++
	}
	logger.WithField("count", registered).Debug("Registered service keys")
	return registered
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *config.AppConfig) error {
	base, err := url.Parse(cfg.Client.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("client.base_url must be an absolute URL, got %q", cfg.Client.BaseURL)
	}
	if cfg.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be positive")
	}

	for i, entry := range cfg.Keys {
		if strings.TrimSpace(entry.Service) == "" {
			return fmt.Errorf("keys[%d]: service cannot be empty", i)
		}
	}

	switch cfg.MCP.Transport {
	case config.TransportStdio:
	case config.TransportSSE:
		if cfg.MCP.Addr == "" {
			return fmt.Errorf("mcp.addr is required for sse transport")
		}
	default:
		return fmt.Errorf("mcp.transport must be 'stdio' or 'sse', got '%s'", cfg.MCP.Transport)
	}

	if cfg.HTTP.Enabled && (cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", cfg.HTTP.Port)
	}

	if cfg.LLM.MaxSteps <= 0 {
		return fmt.Errorf("llm.max_steps must be positive")
	}

	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", cfg.Logging.Format)
	}

	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the configuration
func applyEnvironmentOverrides(cfg *config.AppConfig, logger *logrus.Logger) {
	// Client overrides
	if apiKey := os.Getenv("LYNKR_API_KEY"); apiKey != "" {
		cfg.Client.APIKey = apiKey
	}
	if baseURL := os.Getenv("LYNKR_BASE_URL"); baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	cfg.Client.Timeout = utils.DurationFromEnv("LYNKR_TIMEOUT", cfg.Client.Timeout)

	// LLM overrides
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}

	// HTTP overrides
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		if _, err := fmt.Sscanf(portStr, "%d", &cfg.HTTP.Port); err != nil {
			logger.Warnf("Invalid HTTP_PORT: %s", portStr)
		}
	}

	if token := os.Getenv("LYNKR_HTTP_TOKEN"); token != "" {
		cfg.HTTP.AuthToken = token
	}

	// MCP overrides
	if transport := os.Getenv("MCP_TRANSPORT"); transport != "" {
		cfg.MCP.Transport = strings.ToLower(transport)
	}

	// Logging overrides
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	cfg.Metrics.Enabled = utils.BoolFromEnv("METRICS_ENABLED", cfg.Metrics.Enabled)
}
