// Copyright 2026 BWI GmbH and Regio contributors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration handling for the regio CLI.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Config is the configuration for the regio CLI.
type Config struct {
	// Registries is the list of registries regio knows about
	Registries []RegistryConfig `yaml:"registries"`
	// Proxy is an optional outbound proxy URL applied to all registries
	Proxy string `yaml:"proxy,omitempty"`
	// Logging is the logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// RegistryConfig configures a single registry.
type RegistryConfig struct {
	// Name identifies the registry locally and must be unique
	Name string `yaml:"name"`
	// URL is the registry URL or bare hostname
	URL string `yaml:"url"`
	// DockerConfigFile is the path of a Docker config JSON document holding
	// the credentials for this registry
	DockerConfigFile string `yaml:"dockerConfigFile,omitempty"`
	// PageSize is the page size requested from list endpoints
	PageSize int `yaml:"pageSize" default:"100"`
	// TagLimit caps the number of tags fetched per repository
	TagLimit int `yaml:"tagLimit" default:"2000"`
}

// UnmarshalYAML implements Unmarshaler interface and adds support for default
// values via tags, which is not supported
func (r *RegistryConfig) UnmarshalYAML(unmarshal func(any) error) error {
	if err := defaults.Set(r); err != nil {
		return err
	}

	type plain RegistryConfig
	if err := unmarshal((*plain)(r)); err != nil {
		return err
	}

	return nil
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format is the log format (json, text)
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Registries: []RegistryConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Registries))
	for i, reg := range c.Registries {
		if reg.Name == "" {
			return fmt.Errorf("registries[%d].name is required", i)
		}
		if seen[reg.Name] {
			return fmt.Errorf("registries[%d].name %q is not unique", i, reg.Name)
		}
		seen[reg.Name] = true

		if reg.URL == "" {
			return fmt.Errorf("registries[%d].url is required", i)
		}
		if reg.PageSize < 1 {
			return fmt.Errorf("registries[%d].pageSize must be at least 1", i)
		}
		if reg.TagLimit < 1 {
			return fmt.Errorf("registries[%d].tagLimit must be at least 1", i)
		}
	}

	return nil
}

// Registry returns the registry configuration with the given name.
func (c *Config) Registry(name string) (RegistryConfig, error) {
	for _, reg := range c.Registries {
		if reg.Name == name {
			return reg, nil
		}
	}
	return RegistryConfig{}, fmt.Errorf("registry %q is not configured", name)
}
