package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	lynkr "github.com/lynkr-ai/lynkr-go-sdk"
	"github.com/lynkr-ai/lynkr-go-sdk/config"
	internalconfig "github.com/lynkr-ai/lynkr-go-sdk/internal/config"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/logger"
	"github.com/lynkr-ai/lynkr-go-sdk/internal/metrics"
	"github.com/lynkr-ai/lynkr-go-sdk/keys"
	"github.com/lynkr-ai/lynkr-go-sdk/pkg/utils"
)

// app holds what the commands share: configuration, logger, key registry
// and the Lynkr client.
type app struct {
	configPath string
	logLevel   string

	cfg       *config.AppConfig
	logger    *logrus.Logger
	keys      *keys.Manager
	collector *metrics.Collector
	client    *lynkr.Client
}

// load reads the configuration and builds the logger and key registry.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}

	bootCfg := utils.DefaultLogConfig()
	if a.logLevel != "" {
		bootCfg.Level = a.logLevel
	}
	bootLogger := utils.ConfigureLogger(bootCfg)

	cfg, err := internalconfig.LoadConfig(a.configPath, bootLogger)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	a.cfg = cfg
	a.logger = utils.ConfigureLogger(cfg.Logging)
	a.keys = keys.NewManager()
	a.logger.AddHook(logger.NewRedactionHook(a.keys))
	internalconfig.RegisterKeys(a.keys, cfg.Keys, a.logger)

	if cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector(a.logger, lynkr.Version)
	}
	return nil
}

// lynkrClient returns the shared client, creating it on first use.
func (a *app) lynkrClient() (*lynkr.Client, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	if a.client != nil {
		return a.client, nil
	}

	client, err := lynkr.NewClient(a.cfg.Client.APIKey,
		lynkr.WithBaseURL(a.cfg.Client.BaseURL),
		lynkr.WithTimeout(a.cfg.Client.Timeout),
		lynkr.WithLogger(a.logger),
		lynkr.WithKeyManager(a.keys),
		lynkr.WithMetrics(a.collector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Lynkr client: %w", err)
	}
	a.client = client
	return client, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func parseData(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, fmt.Errorf("--data is required")
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	return data, nil
}
