package main

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`
	UploadDir  string `yaml:"upload_dir"`

	ChatHistoryLimit      int    `yaml:"chat_history_limit"`
	SessionTimeoutMinutes int    `yaml:"session_timeout_minutes"`
	AnalysisSchedule      string `yaml:"analysis_schedule"`
	MaxUploadMB           int    `yaml:"max_upload_mb"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.UploadDir, "UPLOAD_DIR")
	envOverrideInt(&cfg.ChatHistoryLimit, "CHAT_HISTORY_LIMIT")
	envOverrideInt(&cfg.SessionTimeoutMinutes, "SESSION_TIMEOUT_MINUTES")
	envOverride(&cfg.AnalysisSchedule, "ANALYSIS_SCHEDULE")
	envOverrideInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB")

	// Defaults
	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultAnthropicModel
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./confusionbank.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":5000"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.ChatHistoryLimit == 0 {
		cfg.ChatHistoryLimit = 10
	}
	if cfg.SessionTimeoutMinutes == 0 {
		cfg.SessionTimeoutMinutes = 30
	}
	if cfg.MaxUploadMB == 0 {
		cfg.MaxUploadMB = 16
	}

	return cfg
}

func envOverride(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func envOverrideInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Invalid %s value '%s': %v", key, value, err)
			return
		}
		*target = parsed
	}
}
