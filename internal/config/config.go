// internal/config/config.go
package config

import (
	"encoding/json"
	"os"
)

// FileName is the config file kept inside the repository directory.
const FileName = "config.json"

type Config struct {
	Store struct {
		CacheSize          int `json:"cache_size"`
		CompressionMinSize int `json:"compression_min_size"`
		CompressionLevel   int `json:"compression_level"`
	} `json:"store"`

	Diff struct {
		SimilarityThreshold float64 `json:"similarity_threshold"`
	} `json:"diff"`

	IgnorePatterns []string `json:"ignore_patterns"`

	Author   string `json:"author"`
	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var c Config
	c.Store.CacheSize = 512
	c.Store.CompressionMinSize = 1024
	c.Store.CompressionLevel = 2
	c.Diff.SimilarityThreshold = 0.5
	c.Author = "guardian"
	c.LogLevel = "info"
	return &c
}

// Load reads the config at path. A missing file is not an error; the
// defaults are returned instead.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the config to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
