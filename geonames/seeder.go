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

// Package geonames seeds the store with positions, administrative regions and
// names from the GeoNames dumps.
package geonames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/blinklabs-io/toponym/augment"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// SentinelSourceName owns the foreign position
	SentinelSourceName = "none"
	// AltNameSourceName is the source of names from alternateNamesV2
	AltNameSourceName = "geoalt"
	// DefaultComment marks the main name of a seeded position
	DefaultComment = "GeoNames-Default"

	DefaultBatchRows = 10000

	adminFile     = "admin2Codes.txt"
	altNamesDump  = "alternateNamesV2"
	sentinelYear  = 2022
	adjacentAdmin = "0"
	adminFeature  = "A"
)

var ErrNoDatabase = errors.New("geonames: no database configured")

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	Fetcher      *Fetcher
	// Queue receives the Wikipedia links of seeded positions. Links are
	// dropped when nil.
	Queue *augment.Queue
	// Countries are seeded with their admin2 regions. Adjacents only get
	// positions.
	Countries []string
	Adjacents []string
	// Languages filters alternate names. All languages are kept when empty.
	Languages []string
	// BatchRows is the number of positions handled per alternate name batch
	BatchRows int
	// WikiRows is the size of the augmentation batch run after each
	// alternate name batch
	WikiRows int
}

type Seeder struct {
	config  Config
	logger  *slog.Logger
	db      *database.Database
	fetcher *Fetcher
	metrics *seedMetrics
}

func New(cfg Config) (*Seeder, error) {
	if cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewFetcher(cfg.Logger, "", "", nil)
	}
	if cfg.BatchRows <= 0 {
		cfg.BatchRows = DefaultBatchRows
	}
	return &Seeder{
		config:  cfg,
		logger:  cfg.Logger.With("component", "geonames"),
		db:      cfg.Database,
		fetcher: cfg.Fetcher,
		metrics: newSeedMetrics(cfg.PromRegistry),
	}, nil
}

// Seed runs SeedAdmin, SeedPositions and SeedAltNames and drains the
// augmentation queue
func (s *Seeder) Seed(ctx context.Context) error {
	if err := os.MkdirAll(s.fetcher.Dir(), 0o755); err != nil {
		return fmt.Errorf("create geonames dir: %w", err)
	}
	if err := s.SeedAdmin(ctx); err != nil {
		return err
	}
	if err := s.SeedPositions(ctx); err != nil {
		return err
	}
	if err := s.SeedAltNames(ctx); err != nil {
		return err
	}
	if s.config.Queue != nil && s.config.Queue.Enabled() {
		if _, err := s.config.Queue.Drain(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin stores the admin2 regions of the main countries
func (s *Seeder) SeedAdmin(ctx context.Context) error {
	path, err := s.fetcher.Plain(ctx, adminFile)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	var regions []models.ParentRegion
	err = ParseAdminCodes(adminFile, f, func(row AdminCode) error {
		s.metrics.rows.WithLabelValues(adminFile).Inc()
		if len(row.Code) < 2 || !slices.Contains(s.config.Countries, row.Code[:2]) {
			return nil
		}
		regions = append(regions, models.ParentRegion{ID: row.Code, Name: row.Name})
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.db.AddParentRegions(regions, nil); err != nil {
		return err
	}
	s.logger.Info("seeded parent regions", "count", len(regions))
	return nil
}

// SeedPositions adds the foreign sentinel and one source per country with
// its positions and their main names
func (s *Seeder) SeedPositions(ctx context.Context) error {
	if err := s.ensureSource(SentinelSourceName, "For linking foreign positions", sentinelYear); err != nil {
		return err
	}
	err := s.db.AddPosition(&models.Position{
		ID:         models.ForeignPositionID,
		SourceName: SentinelSourceName,
		ParentID:   SentinelSourceName,
	}, nil)
	if err != nil {
		return err
	}
	for _, country := range s.config.Countries {
		if err := s.seedCountry(ctx, country, true); err != nil {
			return err
		}
	}
	for _, country := range s.config.Adjacents {
		if err := s.seedCountry(ctx, country, false); err != nil {
			return err
		}
	}
	return nil
}

// CountrySource is the seeded source holding a country's positions
func CountrySource(country string) string {
	return "geon" + strings.ToLower(country)
}

func (s *Seeder) seedCountry(ctx context.Context, country string, main bool) error {
	country = strings.ToUpper(country)
	path, err := s.fetcher.Text(ctx, country)
	if err != nil {
		return err
	}
	source := CountrySource(country)
	if err := s.ensureSource(source, "GeoNames "+path, time.Now().Year()); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	normalizer := s.db.Normalizer()
	var positions []models.Position
	var names []models.Toponym
	err = ParsePlaces(country, f, func(row Place) error {
		s.metrics.rows.WithLabelValues("country").Inc()
		if row.FeatureClass == adminFeature {
			return nil
		}
		admin := adjacentAdmin
		if main {
			admin = strings.Join([]string{country, row.Admin1Code, row.Admin2Code}, ".")
		}
		positions = append(positions, models.Position{
			ID:         row.GeonameID,
			SourceName: source,
			Latitude:   row.Latitude,
			Longitude:  row.Longitude,
			ParentID:   admin,
		})
		sig := normalizer.NormalizeWithASCII(row.Name, row.ASCIIName)
		positionID := row.GeonameID
		names = append(names, models.Toponym{
			PositionID:  &positionID,
			SourceName:  source,
			Name:        row.Name,
			ASCIIName:   sig.ASCIIName,
			Pattern:     sig.Pattern,
			Tokens:      sig.Tokens,
			ASCIITokens: sig.ASCIITokens,
			Comment:     DefaultComment,
		})
		return ctx.Err()
	})
	if err != nil {
		return err
	}
	var added, named int
	err = s.db.Transaction(true).Do(func(txn *database.Txn) error {
		var err error
		if added, err = s.db.AddPositions(positions, txn); err != nil {
			return err
		}
		named, err = s.db.AddKnownToponyms(names, txn)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.positions.Add(float64(added))
	s.toponymsAdded(source, named)
	s.logger.Info(
		"seeded country",
		"country", country,
		"main", main,
		"positions", added,
		"toponyms", named,
	)
	return nil
}

// SeedAltNames adds the alternate names of seeded positions and queues their
// Wikipedia links for augmentation
func (s *Seeder) SeedAltNames(ctx context.Context) error {
	if err := s.ensureSource(AltNameSourceName, altNamesDump, time.Now().Year()); err != nil {
		return err
	}
	if err := s.ensureSource(augment.SourceName, "wikidata", time.Now().Year()); err != nil {
		return err
	}
	path, err := s.fetcher.Text(ctx, altNamesDump)
	if err != nil {
		return err
	}
	used, err := s.db.PositionIDs(nil)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	names := make(map[string][]AltName)
	links := make(map[string][]AltName)
	err = ParseAltNames(altNamesDump, f, func(row AltName) error {
		s.metrics.rows.WithLabelValues(altNamesDump).Inc()
		if _, ok := used[row.GeonameID]; !ok {
			return nil
		}
		if row.IsWikipediaLink() {
			links[row.GeonameID] = append(links[row.GeonameID], row)
			return nil
		}
		if len(s.config.Languages) > 0 && !slices.Contains(s.config.Languages, row.Language) {
			return nil
		}
		names[row.GeonameID] = append(names[row.GeonameID], row)
		if len(names) < s.config.BatchRows {
			return nil
		}
		err := s.flushAltNames(ctx, names, links)
		clear(names)
		clear(links)
		return err
	})
	if err != nil {
		return err
	}
	return s.flushAltNames(ctx, names, links)
}

func (s *Seeder) flushAltNames(
	ctx context.Context,
	names map[string][]AltName,
	links map[string][]AltName,
) error {
	normalizer := s.db.Normalizer()
	var rows []models.Toponym
	for geonameID, alts := range names {
		for _, alt := range alts {
			sig := normalizer.Normalize(alt.Name)
			positionID := geonameID
			rows = append(rows, models.Toponym{
				PositionID:  &positionID,
				SourceName:  AltNameSourceName,
				Name:        alt.Name,
				ASCIIName:   sig.ASCIIName,
				Pattern:     sig.Pattern,
				Tokens:      sig.Tokens,
				ASCIITokens: sig.ASCIITokens,
				Language:    alt.Language,
			})
		}
	}
	count, err := s.db.AddKnownToponyms(rows, nil)
	if err != nil {
		return err
	}
	s.toponymsAdded(AltNameSourceName, count)
	queue := s.config.Queue
	if queue == nil || len(links) == 0 {
		return nil
	}
	var wikiLinks []augment.Link
	for geonameID, alts := range links {
		for _, alt := range alts {
			wikiLinks = append(wikiLinks, augment.Link{
				PositionID: geonameID,
				Source:     augment.SourceName,
				URL:        alt.Name,
			})
		}
	}
	if _, err := queue.Enqueue(ctx, wikiLinks); err != nil {
		return err
	}
	_, err = queue.ResolveBatch(ctx, s.config.WikiRows)
	return err
}

func (s *Seeder) ensureSource(name string, comment string, year int) error {
	_, err := s.db.AddSource(name, comment, year, nil)
	if err != nil && !errors.Is(err, database.ErrSourceExists) {
		return err
	}
	return nil
}

func (s *Seeder) toponymsAdded(source string, count int) {
	if count == 0 {
		return
	}
	s.metrics.toponyms.WithLabelValues(source).Add(float64(count))
	if s.config.EventBus != nil {
		s.config.EventBus.Publish(
			event.ToponymsAddedEventType,
			event.NewEvent(
				event.ToponymsAddedEventType,
				event.ToponymsAddedEvent{Source: source, Count: count},
			),
		)
	}
}
