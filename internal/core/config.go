package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Storage struct {
	Root             string `yaml:"root"`
	ThumbnailMaxEdge int    `yaml:"thumbnailMaxEdge"`
}

type Model struct {
	Path           string `yaml:"path"`
	MetadataPath   string `yaml:"metadataPath"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type Remedies struct {
	Path string `yaml:"path"`
}

type Session struct {
	RedisAddress string `yaml:"redisAddress"`
	TTLMinutes   int    `yaml:"ttlMinutes"`
}

type ServiceConfig struct {
	Port     int      `yaml:"port"`
	Database Database `yaml:"database"`
	Storage  Storage  `yaml:"storage"`
	Model    Model    `yaml:"model"`
	Remedies Remedies `yaml:"remedies"`
	Session  Session  `yaml:"session"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Storage.ThumbnailMaxEdge == 0 {
		config.Storage.ThumbnailMaxEdge = 200
	}
	if config.Model.TimeoutSeconds == 0 {
		config.Model.TimeoutSeconds = 30
	}
	if config.Session.TTLMinutes == 0 {
		config.Session.TTLMinutes = 60
	}
}

func validateConfig(config *ServiceConfig) error {
	if config.Database.Type == "" {
		return fmt.Errorf("database type must be set")
	}
	if config.Database.ConnectionString == "" {
		return fmt.Errorf("database connection string must be set")
	}
	if config.Storage.Root == "" {
		return fmt.Errorf("storage root must be set")
	}
	if config.Model.Path == "" || config.Model.MetadataPath == "" {
		return fmt.Errorf("model path and metadata path must be set")
	}
	if config.Remedies.Path == "" {
		return fmt.Errorf("remedies path must be set")
	}
	if config.Session.RedisAddress == "" {
		return fmt.Errorf("session redis address must be set")
	}
	return nil
}
