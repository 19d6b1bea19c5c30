package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lynkr-ai/lynkr-go-sdk/pkg/utils"
)

// Supported MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// KeyConfig is a service key loaded into the key manager at startup. Supports
// either a "service=secret" scalar or a full object via custom YAML
// unmarshalling.
type KeyConfig struct {
	Service string   `yaml:"service" json:"service"`
	Secret  string   `yaml:"secret" json:"secret"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// UnmarshalYAML allows KeyConfig to accept scalar or mapping values.
func (c *KeyConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		service, secret, ok := strings.Cut(value.Value, "=")
		if !ok {
			return fmt.Errorf("invalid key entry %q: expected service=secret", value.Value)
		}
		*c = KeyConfig{Service: strings.TrimSpace(service), Secret: strings.TrimSpace(secret)}
		return nil
	case yaml.MappingNode:
		type raw KeyConfig
		var r raw
		if err := value.Decode(&r); err != nil {
			return err
		}
		*c = KeyConfig(r)
		return nil
	default:
		return fmt.Errorf("invalid key entry: kind %d", value.Kind)
	}
}

// AppConfig is the main configuration structure for the application
type AppConfig struct {
	Client  ClientConfig    `yaml:"client" json:"client"`
	Keys    []KeyConfig     `yaml:"keys" json:"keys"`
	MCP     MCPConfig       `yaml:"mcp" json:"mcp"`
	HTTP    HTTPConfig      `yaml:"http" json:"http"`
	LLM     LLMConfig       `yaml:"llm" json:"llm"`
	Logging utils.LogConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// ClientConfig configures the Lynkr API client
type ClientConfig struct {
	APIKey  string        `yaml:"api_key" json:"api_key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// MCPConfig configures the MCP tool server
type MCPConfig struct {
	Name      string `yaml:"name" json:"name"`
	Transport string `yaml:"transport" json:"transport"`
	Addr      string `yaml:"addr" json:"addr"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
}

// HTTPConfig contains HTTP gateway configuration
type HTTPConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Port        int      `yaml:"port" json:"port"`
	Host        string   `yaml:"host" json:"host"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	// AuthToken, when set, is required as a bearer token on routes that
	// execute actions or reveal key state.
	AuthToken string `yaml:"auth_token" json:"auth_token"`
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig contains the OpenAI agent configuration
type LLMConfig struct {
	APIKey      string        `yaml:"api_key" json:"api_key"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float32       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxSteps    int           `yaml:"max_steps" json:"max_steps"`
}

// MetricsConfig toggles Prometheus metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Client: ClientConfig{
			BaseURL: "http://api.lynkr.ca",
			Timeout: 30 * time.Second,
		},
		MCP: MCPConfig{
			Name:      "lynkr",
			Transport: TransportStdio,
			Addr:      ":8081",
		},
		HTTP: HTTPConfig{
			Enabled:     true,
			Port:        8000,
			Host:        "127.0.0.1",
			CORSOrigins: []string{},
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.1,
			Timeout:     60 * time.Second,
			MaxSteps:    8,
		},
		Logging: utils.DefaultLogConfig(),
		Metrics: MetricsConfig{Enabled: true},
	}
}
