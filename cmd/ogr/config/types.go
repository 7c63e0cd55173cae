// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config reads the ogr configuration file.
//
// The file lives at ~/.ogr/ogr.yaml unless --config or OGR_CONFIG names
// another path, and is created with defaults on first run.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

// Config is the ogr configuration file.
type Config struct {
	// Resources maps resource names to file paths or URLs.
	Resources map[string]string `yaml:"resources" validate:"dive,keys,required,endkeys,required"`

	// SearchPaths are doublestar globs searched for resource files.
	SearchPaths []string `yaml:"search_paths" validate:"dive,required"`

	Cache     CacheConfig      `yaml:"cache"`
	Remote    RemoteConfig     `yaml:"remote"`
	Defaults  DefaultsConfig   `yaml:"defaults"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// CacheConfig configures the ontology cache.
type CacheConfig struct {
	// Dir holds the BadgerDB snapshot store. Supports ~.
	Dir string `yaml:"dir"`

	// InMemory keeps snapshots in memory only.
	InMemory bool `yaml:"in_memory"`

	// TTL is how long a parsed ontology stays valid.
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`

	// Disabled turns off the on-disk tier entirely.
	Disabled bool `yaml:"disabled"`
}

// RemoteConfig configures the OLS-compatible remote resolver.
type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int           `yaml:"burst" validate:"gte=0"`
	Rows          int           `yaml:"rows" validate:"gte=0,lte=1000"`
}

// DefaultsConfig holds defaults for query flags.
type DefaultsConfig struct {
	// Direction is the traversal direction: u, d or ud.
	Direction string `yaml:"direction" validate:"omitempty,oneof=u d ud du"`

	// Format is the output format.
	Format string `yaml:"format" validate:"omitempty,oneof=tree dot json yaml ids text"`

	// Relations restricts traversal when -p is not given. Empty means all.
	Relations []string `yaml:"relations,omitempty" validate:"dive,required"`

	// ContainerRelations are drawn as dot clusters when -c is not given.
	ContainerRelations []string `yaml:"container_relations,omitempty" validate:"dive,required"`

	// Parallel is the traversal worker count; 0 or 1 is sequential.
	Parallel int `yaml:"parallel" validate:"gte=0,lte=256"`
}

// ServerConfig configures "ogr serve".
type ServerConfig struct {
	Addr     string        `yaml:"addr" validate:"required,hostname_port"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level applies when no -v flag is given.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Dir enables a JSON log file. Supports ~.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Resources:   map[string]string{},
		SearchPaths: []string{"~/.ogr/ontologies/**/*.{obo,json}"},
		Cache: CacheConfig{
			Dir: "~/.ogr/cache",
			TTL: 24 * time.Hour,
		},
		Remote: RemoteConfig{
			BaseURL:       resolve.DefaultOLSBaseURL,
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
			Rows:          20,
		},
		Defaults: DefaultsConfig{
			Direction: "u",
			Format:    "tree",
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:     "127.0.0.1:8089",
			Debounce: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// CacheDir returns Cache.Dir with ~ expanded.
func (c *Config) CacheDir() string {
	return ExpandHome(c.Cache.Dir)
}

// RegistryConfig builds the loader configuration.
func (c *Config) RegistryConfig() loader.RegistryConfig {
	return loader.RegistryConfig{
		Resources:   c.Resources,
		SearchPaths: c.SearchPaths,
	}
}

// OLSConfig builds the remote resolver configuration.
func (c *Config) OLSConfig() resolve.OLSConfig {
	return resolve.OLSConfig{
		BaseURL:       c.Remote.BaseURL,
		Rows:          c.Remote.Rows,
		Timeout:       c.Remote.Timeout,
		RatePerSecond: c.Remote.RatePerSecond,
		Burst:         c.Remote.Burst,
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && os.IsPathSeparator(path[1]) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
