package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Classifier struct {
		ConfidenceThreshold    float64 `yaml:"confidence_threshold"`
		AutoResponseEnabled    bool    `yaml:"auto_response_enabled"`
		MinExamplesPerCategory int     `yaml:"min_examples_per_category"`
		RetrainTimeout         int64   `yaml:"retrain_timeout_seconds"`
		ModelSnapshotPath      string  `yaml:"model_snapshot_path"`
	} `yaml:"classifier"`
	Bootstrap struct {
		JSONPath string `yaml:"json_path"`
		CSVPath  string `yaml:"csv_path"`
	} `yaml:"bootstrap"`
	Gmail struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsPath string `yaml:"credentials_path"`
		TokenPath       string `yaml:"token_path"`
		PollInterval    int64  `yaml:"poll_interval_seconds"`
		MaxFetch        int    `yaml:"max_fetch"`
		Workers         int    `yaml:"workers"`
	} `yaml:"gmail"`
	Generator struct {
		Provider   string `yaml:"provider"`
		APIKey     string `yaml:"api_key"`
		ModelName  string `yaml:"model_name"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"generator"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	config.Generator.APIKey = os.ExpandEnv(config.Generator.APIKey)

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/emails.db"
	}
	if c.Classifier.ConfidenceThreshold == 0 {
		c.Classifier.ConfidenceThreshold = 0.7
	}
	if c.Classifier.MinExamplesPerCategory == 0 {
		c.Classifier.MinExamplesPerCategory = 2
	}
	if c.Classifier.RetrainTimeout == 0 {
		c.Classifier.RetrainTimeout = 120
	}
	if c.Classifier.ModelSnapshotPath == "" {
		c.Classifier.ModelSnapshotPath = "data/model.json"
	}
	if c.Gmail.PollInterval == 0 {
		c.Gmail.PollInterval = 60
	}
	if c.Gmail.MaxFetch == 0 {
		c.Gmail.MaxFetch = 10
	}
	if c.Gmail.Workers == 0 {
		c.Gmail.Workers = 4
	}
	if c.Generator.MaxRetries == 0 {
		c.Generator.MaxRetries = 3
	}
}
