// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "toponym.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultWikiPause       = "10s"
	DefaultScorer          = "tokenset"

	maxWikiRows = 500
)

var ErrInvalidConfig = errors.New("invalid config")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config yaml.Node `yaml:"config,omitempty"`
}

type Config struct {
	DatabasePath    string   `yaml:"databasePath" split_words:"true"`
	GeonamesDir     string   `yaml:"geonamesDir" split_words:"true"`
	GeonamesURL     string   `yaml:"geonamesUrl" envconfig:"GEONAMES_URL"`
	WikiTitleFile   string   `yaml:"wikiTitleFile" split_words:"true"`
	WikiPause       string   `yaml:"wikiPause" split_words:"true"`
	MatchScorer     string   `yaml:"matchScorer" split_words:"true"`
	BindAddr        string   `yaml:"bindAddr" split_words:"true"`
	ShutdownTimeout string   `yaml:"shutdownTimeout" split_words:"true"`
	Languages       []string `yaml:"languages"`
	StopWords       []string `yaml:"stopWords" split_words:"true"`
	Countries       []string `yaml:"countries"`
	Adjacents       []string `yaml:"adjacents"`
	SeedRows        int      `yaml:"seedRows" split_words:"true"`
	WikiRows        int      `yaml:"wikiRows" split_words:"true"`
	WikiRequestRate float64  `yaml:"wikiRequestRate" split_words:"true"`
	MatchThreshold  float64  `yaml:"matchThreshold" split_words:"true"`
	MatchRounds     int      `yaml:"matchRounds" split_words:"true"`
	ClusterRadius   float64  `yaml:"clusterRadius" split_words:"true"`
	ApiPort         uint     `yaml:"apiPort" envconfig:"port"`
	MetricsPort     uint     `yaml:"metricsPort" split_words:"true"`
	Stem            bool     `yaml:"stem"`
	WikiDrain       bool     `yaml:"wikiDrain" split_words:"true"`
	ResolveOnMatch  bool     `yaml:"resolveOnMatch" split_words:"true"`
	Tracing         bool     `yaml:"tracing"`
	TracingStdout   bool     `yaml:"tracingStdout" split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:    ".toponym/toponym.sqlite",
		GeonamesDir:     "geonames",
		WikiTitleFile:   ".toponym/wiki_title_2_base_item.txt",
		WikiPause:       DefaultWikiPause,
		MatchScorer:     DefaultScorer,
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		Languages:       []string{"en"},
		SeedRows:        10000,
		WikiRows:        50,
		WikiRequestRate: 2,
		MatchThreshold:  0.75,
		MatchRounds:     3,
		ClusterRadius:   10,
		ApiPort:         8080,
		MetricsPort:     12799,
		ResolveOnMatch:  true,
	}
}

var globalConfig = defaultConfig()

// LoadConfig reads configFile, or the first of ~/.toponym/toponym.yaml and
// /etc/toponym/toponym.yaml that exists, and applies TOPONYM_* environment
// variables on top
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".toponym", "toponym.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/toponym/toponym.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		// Settings may live at the top level or under a config section
		if !tempCfg.Config.IsZero() {
			if err := tempCfg.Config.Decode(globalConfig); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("toponym", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := globalConfig.normalize(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Save writes cfg to path as YAML, creating the directory when needed
func Save(path string, cfg *Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}
	buf, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// normalize lower-cases language codes, upper-cases country codes and
// validates ranges
func (c *Config) normalize() error {
	for i, lang := range c.Languages {
		c.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
	for i, country := range c.Countries {
		c.Countries[i] = strings.ToUpper(strings.TrimSpace(country))
	}
	for i, country := range c.Adjacents {
		c.Adjacents[i] = strings.ToUpper(strings.TrimSpace(country))
	}
	switch {
	case c.MatchThreshold <= 0 || c.MatchThreshold > 1:
		return fmt.Errorf("%w: matchThreshold must be in (0, 1], got %v", ErrInvalidConfig, c.MatchThreshold)
	case c.MatchRounds < 1:
		return fmt.Errorf("%w: matchRounds must be positive, got %d", ErrInvalidConfig, c.MatchRounds)
	case c.ClusterRadius <= 0:
		return fmt.Errorf("%w: clusterRadius must be positive, got %v", ErrInvalidConfig, c.ClusterRadius)
	case c.WikiRows < 0 || c.WikiRows > maxWikiRows:
		return fmt.Errorf("%w: wikiRows must be in [0, %d], got %d", ErrInvalidConfig, maxWikiRows, c.WikiRows)
	}
	if _, err := c.WikiPauseDuration(); err != nil {
		return err
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) WikiPauseDuration() (time.Duration, error) {
	return parseDuration("wikiPause", c.WikiPause, DefaultWikiPause)
}

func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	return parseDuration("shutdownTimeout", c.ShutdownTimeout, DefaultShutdownTimeout)
}

func parseDuration(name string, value string, fallback string) (time.Duration, error) {
	if value == "" {
		value = fallback
	}
	ret, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	return ret, nil
}
