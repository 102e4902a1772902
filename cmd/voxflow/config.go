package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all voxflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath             string `json:"db_path"`
	LogLevel           string `json:"log_level"`
	LogFormat          string `json:"log_format"`
	AnthropicAPIKey    string `json:"anthropic_api_key"`
	AnthropicBaseURL   string `json:"anthropic_base_url"`
	AnthropicModel     string `json:"anthropic_model"`
	AutoRun            bool   `json:"auto_run"`
	AutoRunConcurrency int    `json:"auto_run_concurrency"`
	DefaultWorkflowID  string `json:"default_workflow_id"`
	DefinitionsDir     string `json:"definitions_dir"`
}

const defaultAutoRunConcurrency = 2

func defaultConfig() Config {
	return Config{
		DBPath:    filepath.Join(voxflowDir(), "voxflow.db"),
		LogLevel:  "info",
		LogFormat: "json",
		AutoRun:   true,

		AutoRunConcurrency: defaultAutoRunConcurrency,
	}
}

func voxflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voxflow"
	}
	return filepath.Join(home, ".voxflow")
}

func settingsPath() string {
	return filepath.Join(voxflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("VOXFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VOXFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VOXFLOW_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("VOXFLOW_ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("VOXFLOW_ANTHROPIC_BASE_URL"); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := os.Getenv("VOXFLOW_ANTHROPIC_MODEL"); v != "" {
		cfg.AnthropicModel = v
	}
	if v := os.Getenv("VOXFLOW_AUTO_RUN"); v != "" {
		cfg.AutoRun = v == "true" || v == "1"
	}
	if v := os.Getenv("VOXFLOW_AUTO_RUN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AutoRunConcurrency = n
		}
	}
	if v := os.Getenv("VOXFLOW_DEFAULT_WORKFLOW_ID"); v != "" {
		cfg.DefaultWorkflowID = v
	}
	if v := os.Getenv("VOXFLOW_DEFINITIONS_DIR"); v != "" {
		cfg.DefinitionsDir = v
	}

	return cfg
}
