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

package toponym

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blinklabs-io/toponym/matcher"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	httpClient      *http.Client
	databasePath    string
	geonamesDir     string
	geonamesURL     string
	wikiTitleFile   string
	wikipediaAPI    string
	sparqlEndpoint  string
	matchScorer     string
	languages       []string
	stopWords       []string
	countries       []string
	adjacents       []string
	seedRows        int
	wikiRows        int
	matchRounds     int
	wikiRequestRate float64
	matchThreshold  float64
	clusterRadius   float64
	wikiPause       time.Duration
	shutdownTimeout time.Duration
	stem            bool
	resolveOnMatch  bool
	tracing         bool
	tracingStdout   bool
}

func (c *Config) validate() error {
	if c.matchThreshold <= 0 || c.matchThreshold > 1 {
		return fmt.Errorf("invalid match threshold: %v", c.matchThreshold)
	}
	if c.matchRounds < 1 {
		return fmt.Errorf("invalid match rounds: %d", c.matchRounds)
	}
	if c.clusterRadius <= 0 {
		return fmt.Errorf("invalid cluster radius: %v", c.clusterRadius)
	}
	if c.wikiRows < 0 {
		return errors.New("wiki rows cannot be negative")
	}
	if _, ok := matcher.ScorerByName(c.matchScorer); !ok {
		return fmt.Errorf("unknown match scorer: %s", c.matchScorer)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Resolver config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new toponym config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		languages:      []string{"en"},
		matchThreshold: matcher.DefaultThreshold,
		matchRounds:    matcher.DefaultMaxRounds,
		clusterRadius:  10,
		resolveOnMatch: true,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. Logs are discarded by default
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the sqlite database file. The default is to store everything in memory
func WithDatabasePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.databasePath = path
	}
}

// WithLanguages specifies the languages used for stop words, stemming and alternate names
func WithLanguages(languages ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.languages = languages
	}
}

func WithStopWords(words ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.stopWords = words
	}
}

func WithStemming(stem bool) ConfigOptionFunc {
	return func(c *Config) {
		c.stem = stem
	}
}

// WithCountries specifies the countries seeded with their admin regions
func WithCountries(countries ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.countries = countries
	}
}

// WithAdjacents specifies the neighbouring countries seeded without admin regions
func WithAdjacents(countries ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.adjacents = countries
	}
}

func WithGeonamesDir(dir string) ConfigOptionFunc {
	return func(c *Config) {
		c.geonamesDir = dir
	}
}

func WithGeonamesURL(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.geonamesURL = url
	}
}

// WithSeedRows specifies how many positions are handled per alternate name batch
func WithSeedRows(rows int) ConfigOptionFunc {
	return func(c *Config) {
		c.seedRows = rows
	}
}

// WithWikiRows specifies the Wikidata items labelled per batch. Zero disables augmentation
func WithWikiRows(rows int) ConfigOptionFunc {
	return func(c *Config) {
		c.wikiRows = rows
	}
}

func WithWikiPause(pause time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.wikiPause = pause
	}
}

func WithWikiRequestRate(perSecond float64) ConfigOptionFunc {
	return func(c *Config) {
		c.wikiRequestRate = perSecond
	}
}

// WithWikiTitleFile specifies the file remembering Wikipedia title lookups
func WithWikiTitleFile(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.wikiTitleFile = path
	}
}

// WithWikiEndpoints overrides the Wikipedia API template and the Wikidata SPARQL endpoint
func WithWikiEndpoints(wikipediaAPI string, sparqlEndpoint string) ConfigOptionFunc {
	return func(c *Config) {
		c.wikipediaAPI = wikipediaAPI
		c.sparqlEndpoint = sparqlEndpoint
	}
}

// WithHTTPClient specifies the client used for GeoNames and Wikimedia requests
func WithHTTPClient(client *http.Client) ConfigOptionFunc {
	return func(c *Config) {
		c.httpClient = client
	}
}

func WithMatchThreshold(threshold float64) ConfigOptionFunc {
	return func(c *Config) {
		c.matchThreshold = threshold
	}
}

func WithMatchRounds(rounds int) ConfigOptionFunc {
	return func(c *Config) {
		c.matchRounds = rounds
	}
}

// WithMatchScorer selects the matcher scorer by name
func WithMatchScorer(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.matchScorer = name
	}
}

// WithClusterRadius specifies the default cluster radius in kilometers
func WithClusterRadius(radiusKm float64) ConfigOptionFunc {
	return func(c *Config) {
		c.clusterRadius = radiusKm
	}
}

// WithResolveOnMatch controls whether consensus runs after every completed matcher run
func WithResolveOnMatch(resolve bool) ConfigOptionFunc {
	return func(c *Config) {
		c.resolveOnMatch = resolve
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
