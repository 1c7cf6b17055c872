package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config describes the application level configuration. JSON files may
// carry comments; .yaml and .yml files are decoded as YAML.
type Config struct {
	Log       LogConfig       `json:"log" yaml:"log"`
	HashCache HashCacheConfig `json:"hash_cache" yaml:"hash_cache"`
	S3        *S3Config       `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// LogConfig is handed to the logger at start up.
type LogConfig struct {
	File    string `json:"file" yaml:"file"`
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console" yaml:"console"`
}

// HashCacheConfig points at the sqlite file caching rom hashes. An empty
// path disables the cache.
type HashCacheConfig struct {
	Path string `json:"path" yaml:"path"`
}

// S3Config holds the options for accessing the object store.
type S3Config struct {
	Host            string `json:"host" yaml:"host"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
	ForcePathStyle  bool   `json:"force_path_style" yaml:"force_path_style"`
	// Prefix is prepended to every uploaded report key.
	Prefix string `json:"prefix" yaml:"prefix"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Console: true},
	}
}

// LoadFirst tries the given paths in order and returns the first config
// that exists. When none exists the defaults are returned.
func LoadFirst(paths ...string) (*Config, error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err := Load(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Default(), nil
}

// Load reads configuration from a single file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs basic validation of the configuration.
func (c *Config) Validate() error {
	if c.S3 == nil {
		return nil
	}
	if c.S3.Host == "" {
		return errors.New("config.s3.host must be set")
	}
	if c.S3.Bucket == "" {
		return errors.New("config.s3.bucket must be set")
	}
	return nil
}
