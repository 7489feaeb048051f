package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the binary.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// Snapshot backend selection: databaseURL wins, then redisAddr,
	// then the JSON file store under dataDir.
	DataDir       string `yaml:"dataDir"`
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	GeminiAPIKey    string `yaml:"geminiAPIKey"`
	GenerationModel string `yaml:"generationModel"`

	SessionSecret string `yaml:"sessionSecret"`
	SessionTTL    string `yaml:"sessionTTL"`

	AMQPURL       string `yaml:"amqpURL"`
	EventExchange string `yaml:"eventExchange"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.SessionSecret == "" {
		return errors.New("config: sessionSecret is required (set in config.yaml or SESSION_SECRET)")
	}
	if cfg.GeminiAPIKey != "" && cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required when geminiAPIKey is set")
	}
	return nil
}

// ParseSessionTTL parses the session lifetime, defaulting to 30 days.
func ParseSessionTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 30 * 24 * time.Hour, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse sessionTTL: %w", err)
	}
	if ttl <= 0 {
		return 0, errors.New("sessionTTL must be positive")
	}
	return ttl, nil
}
