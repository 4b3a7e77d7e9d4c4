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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blinklabs-io/toponym"
	"github.com/blinklabs-io/toponym/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Open builds a Resolver from cfg
func Open(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry prometheus.Registerer,
) (*toponym.Resolver, error) {
	wikiPause, err := cfg.WikiPauseDuration()
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	return toponym.New(
		ctx,
		toponym.NewConfig(
			toponym.WithLogger(logger),
			toponym.WithPrometheusRegistry(registry),
			toponym.WithDatabasePath(cfg.DatabasePath),
			toponym.WithLanguages(cfg.Languages...),
			toponym.WithStopWords(cfg.StopWords...),
			toponym.WithStemming(cfg.Stem),
			toponym.WithCountries(cfg.Countries...),
			toponym.WithAdjacents(cfg.Adjacents...),
			toponym.WithGeonamesDir(cfg.GeonamesDir),
			toponym.WithGeonamesURL(cfg.GeonamesURL),
			toponym.WithSeedRows(cfg.SeedRows),
			toponym.WithWikiRows(cfg.WikiRows),
			toponym.WithWikiPause(wikiPause),
			toponym.WithWikiRequestRate(cfg.WikiRequestRate),
			toponym.WithWikiTitleFile(cfg.WikiTitleFile),
			toponym.WithMatchThreshold(cfg.MatchThreshold),
			toponym.WithMatchRounds(cfg.MatchRounds),
			toponym.WithMatchScorer(cfg.MatchScorer),
			toponym.WithClusterRadius(cfg.ClusterRadius),
			toponym.WithResolveOnMatch(cfg.ResolveOnMatch),
			toponym.WithTracing(cfg.Tracing),
			toponym.WithTracingStdout(cfg.TracingStdout),
			toponym.WithShutdownTimeout(shutdownTimeout),
		),
	)
}

// Seed downloads the GeoNames dumps for the configured countries and loads
// them, draining the Wikidata queue afterwards when augmentation is enabled
func Seed(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	r, err := Open(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	start := time.Now()
	logger.Info(
		"seeding from GeoNames",
		"component", "node",
		"countries", cfg.Countries,
		"adjacents", cfg.Adjacents,
	)
	if err := r.Seeder().Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}
	logger.Info(
		fmt.Sprintf("finished seeding in %s", time.Since(start).Round(time.Second)),
		"component", "node",
	)
	return nil
}

// Wiki resolves queued Wikidata items until the queue is empty
func Wiki(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	r, err := Open(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	if !r.Queue().Enabled() {
		return fmt.Errorf("wiki augmentation is disabled (wikiRows is %d)", cfg.WikiRows)
	}
	batches, err := r.Queue().Drain(ctx)
	if err != nil {
		return err
	}
	logger.Info(
		fmt.Sprintf("wiki queue drained in %d batches", batches),
		"component", "node",
	)
	return nil
}
