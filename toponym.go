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

// Package toponym assembles the gazetteer: the store, the matcher, the
// consensus engine, the disambiguation navigator, spatial clustering, exports
// and the GeoNames and Wikidata importers.
package toponym

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/toponym/api"
	"github.com/blinklabs-io/toponym/augment"
	"github.com/blinklabs-io/toponym/cluster"
	"github.com/blinklabs-io/toponym/consensus"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/event"
	"github.com/blinklabs-io/toponym/export"
	"github.com/blinklabs-io/toponym/geonames"
	"github.com/blinklabs-io/toponym/matcher"
	"github.com/blinklabs-io/toponym/navigator"
	"github.com/blinklabs-io/toponym/normalize"
	"github.com/blinklabs-io/toponym/task"
)

const defaultShutdownTimeout = 30 * time.Second

// Resolver owns every component of one gazetteer database
type Resolver struct {
	config        Config
	db            *database.Database
	eventBus      *event.EventBus
	runner        *task.Runner
	matcher       *matcher.Matcher
	consensus     *consensus.Consensus
	navigator     *navigator.Navigator
	cluster       *cluster.Engine
	exporter      *export.Exporter
	queue         *augment.Queue
	seeder        *geonames.Seeder
	shutdownFuncs []func(context.Context) error
	closeOnce     sync.Once
}

// New opens the database described by cfg and builds the components on top of it
func New(ctx context.Context, cfg Config) (*Resolver, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	r := &Resolver{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
	}
	if cfg.tracing {
		if err := r.setupTracing(ctx); err != nil {
			r.eventBus.Stop()
			return nil, err
		}
	}
	if err := r.load(); err != nil {
		return nil, errors.Join(err, r.Close())
	}
	return r, nil
}

func (r *Resolver) load() error {
	cfg := r.config
	db, err := database.New(&database.Config{
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
		Path:         cfg.databasePath,
		Normalizer: normalize.New(normalize.Config{
			Languages: cfg.languages,
			StopWords: cfg.stopWords,
			Stem:      cfg.stem,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	r.runner = task.NewRunner(task.RunnerConfig{
		Logger:       cfg.logger,
		PromRegistry: cfg.promRegistry,
	})
	r.consensus, err = consensus.New(consensus.Config{
		Logger:         cfg.logger,
		EventBus:       r.eventBus,
		PromRegistry:   cfg.promRegistry,
		Database:       db,
		ResolveOnMatch: cfg.resolveOnMatch,
	})
	if err != nil {
		return fmt.Errorf("failed to load consensus: %w", err)
	}
	scorer, _ := matcher.ScorerByName(cfg.matchScorer)
	r.matcher, err = matcher.New(matcher.Config{
		Logger:       cfg.logger,
		EventBus:     r.eventBus,
		PromRegistry: cfg.promRegistry,
		Database:     db,
		Scorer:       scorer,
		Resolver:     r.consensus,
		Threshold:    cfg.matchThreshold,
		MaxRounds:    cfg.matchRounds,
	})
	if err != nil {
		return fmt.Errorf("failed to load matcher: %w", err)
	}
	r.navigator, err = navigator.New(navigator.Config{
		Logger:       cfg.logger,
		EventBus:     r.eventBus,
		PromRegistry: cfg.promRegistry,
		Database:     db,
		Nemo:         r.matcher.Nemo(),
	})
	if err != nil {
		return fmt.Errorf("failed to load navigator: %w", err)
	}
	r.cluster, err = cluster.New(cluster.Config{
		Logger:       cfg.logger,
		EventBus:     r.eventBus,
		PromRegistry: cfg.promRegistry,
		Database:     db,
	})
	if err != nil {
		return fmt.Errorf("failed to load cluster engine: %w", err)
	}
	r.exporter, err = export.New(db)
	if err != nil {
		return fmt.Errorf("failed to load exporter: %w", err)
	}
	queueCfg := augment.QueueConfig{
		Logger:       cfg.logger,
		EventBus:     r.eventBus,
		PromRegistry: cfg.promRegistry,
		Database:     db,
		Languages:    cfg.languages,
		BatchRows:    cfg.wikiRows,
		Pause:        cfg.wikiPause,
	}
	if cfg.wikiRows > 0 {
		wiki := augment.NewWikiClient(augment.WikiConfig{
			Logger:            cfg.logger,
			PromRegistry:      cfg.promRegistry,
			HTTPClient:        cfg.httpClient,
			WikipediaAPI:      cfg.wikipediaAPI,
			SPARQLEndpoint:    cfg.sparqlEndpoint,
			TitleFile:         cfg.wikiTitleFile,
			RequestsPerSecond: cfg.wikiRequestRate,
		})
		queueCfg.Labeler = wiki
		queueCfg.Resolver = wiki
	}
	r.queue, err = augment.NewQueue(queueCfg)
	if err != nil {
		return fmt.Errorf("failed to load wiki queue: %w", err)
	}
	r.seeder, err = geonames.New(geonames.Config{
		Logger:       cfg.logger,
		EventBus:     r.eventBus,
		PromRegistry: cfg.promRegistry,
		Database:     db,
		Fetcher: geonames.NewFetcher(
			cfg.logger,
			cfg.geonamesDir,
			cfg.geonamesURL,
			cfg.httpClient,
		),
		Queue:     r.queue,
		Countries: cfg.countries,
		Adjacents: cfg.adjacents,
		Languages: cfg.languages,
		BatchRows: cfg.seedRows,
		WikiRows:  cfg.wikiRows,
	})
	if err != nil {
		return fmt.Errorf("failed to load geonames seeder: %w", err)
	}
	return nil
}

func (r *Resolver) Database() *database.Database {
	return r.db
}

func (r *Resolver) EventBus() *event.EventBus {
	return r.eventBus
}

func (r *Resolver) Runner() *task.Runner {
	return r.runner
}

func (r *Resolver) Matcher() *matcher.Matcher {
	return r.matcher
}

func (r *Resolver) Consensus() *consensus.Consensus {
	return r.consensus
}

func (r *Resolver) Navigator() *navigator.Navigator {
	return r.navigator
}

func (r *Resolver) Cluster() *cluster.Engine {
	return r.cluster
}

func (r *Resolver) Exporter() *export.Exporter {
	return r.exporter
}

func (r *Resolver) Queue() *augment.Queue {
	return r.queue
}

func (r *Resolver) Seeder() *geonames.Seeder {
	return r.seeder
}

// ClusterRadius returns the configured default cluster radius in kilometers
func (r *Resolver) ClusterRadius() float64 {
	return r.config.clusterRadius
}

// Backend returns the components served by the HTTP API
func (r *Resolver) Backend() api.Backend {
	return api.Backend{
		Database:  r.db,
		Navigator: r.navigator,
		Consensus: r.consensus,
		Matcher:   r.matcher,
		Runner:    r.runner,
		Cluster:   r.cluster,
		Exporter:  r.exporter,
		Queue:     r.queue,
	}
}

// Close kills running tasks, flushes tracing and closes the database. It is
// safe to call more than once.
func (r *Resolver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.shutdown()
	})
	return err
}

func (r *Resolver) shutdown() error {
	shutdownTimeout := defaultShutdownTimeout
	if r.config.shutdownTimeout > 0 {
		shutdownTimeout = r.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	r.config.logger.Debug("starting graceful shutdown")

	// Stop background tasks before the database goes away
	if r.runner != nil {
		r.runner.Stop()
	}
	if r.eventBus != nil {
		r.eventBus.Stop()
	}
	if r.db != nil {
		if closeErr := r.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}
	for _, fn := range r.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	r.shutdownFuncs = nil
	r.config.logger.Debug("graceful shutdown complete")
	return err
}
