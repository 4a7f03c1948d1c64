package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MariaDB  MariaDBConfig  `yaml:"mariadb"`
	Parser   ParserConfig   `yaml:"parser"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type MariaDBConfig struct {
	DSN string `yaml:"dsn"`
}

type ParserConfig struct {
	// StreamingThresholdBytes overrides the size above which the XML parser
	// switches to the incremental walk. Zero keeps the built-in default.
	StreamingThresholdBytes int `yaml:"streaming_threshold_bytes"`
}

// Load reads the YAML config at path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Path: "./data/panaudit.db",
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if port := os.Getenv("PANAUDIT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbPath := os.Getenv("PANAUDIT_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if dsn := os.Getenv("PANAUDIT_MARIADB_DSN"); dsn != "" {
		config.MariaDB.DSN = dsn
	}

	return config, nil
}
