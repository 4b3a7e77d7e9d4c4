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

// Package augment fetches additional names for known positions from WikiData.
//
// Wikipedia links are resolved to WikiData items and queued against the
// position they describe. Draining the queue fetches the labels of each item
// in the configured languages and stores them as new toponyms.
package augment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// SourceName is the seeded source of every toponym added from WikiData
	SourceName = "wikdat"
	// MaxBatchRows caps the number of queue rows fetched per batch
	MaxBatchRows      = 500
	DefaultBatchRows  = 50
	DefaultDrainPause = 10 * time.Second

	commentPrefix = "WikiData: "
)

var ErrNoDatabase = errors.New("augment: no database configured")

// Labeler fetches the names of WikiData items
type Labeler interface {
	Names(ctx context.Context, ids []string, languages []string) (map[string][]Labels, error)
}

// Resolver turns Wikipedia links into WikiData item ids
type Resolver interface {
	BaseItem(ctx context.Context, link string) (string, error)
}

type QueueConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	// Labeler and Resolver are usually the same WikiClient. The queue is
	// disabled without a Labeler.
	Labeler   Labeler
	Resolver  Resolver
	Languages []string
	BatchRows int
	Pause     time.Duration
}

// Link is a Wikipedia link describing a position
type Link struct {
	PositionID string
	Source     string
	URL        string
}

type Queue struct {
	config  QueueConfig
	logger  *slog.Logger
	db      *database.Database
	metrics *queueMetrics
}

func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BatchRows <= 0 {
		cfg.BatchRows = DefaultBatchRows
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
	return &Queue{
		config:  cfg,
		logger:  cfg.Logger.With("component", "augment"),
		db:      cfg.Database,
		metrics: newQueueMetrics(cfg.PromRegistry),
	}, nil
}

// Enabled reports whether the queue can fetch labels
func (q *Queue) Enabled() bool {
	return q.config.Labeler != nil
}

// Enqueue resolves links to WikiData items and queues them. Links that fail
// to resolve are queued without an item and never picked by a batch.
func (q *Queue) Enqueue(ctx context.Context, links []Link) (int, error) {
	rows := make([]models.WikiQueue, 0, len(links))
	for _, link := range links {
		row := models.WikiQueue{
			PositionID: link.PositionID,
			SourceName: link.Source,
			Title:      link.URL,
		}
		if q.config.Resolver != nil {
			item, err := q.config.Resolver.BaseItem(ctx, link.URL)
			if err != nil {
				if ctx.Err() != nil {
					return 0, ctx.Err()
				}
				q.logger.Warn(
					"could not resolve wikipedia link",
					"link", link.URL,
					"position", link.PositionID,
					"error", err,
				)
			} else if item != "" {
				row.WikiID = &item
			}
		}
		rows = append(rows, row)
	}
	count, err := q.db.EnqueueWiki(rows, nil)
	if err != nil {
		return 0, err
	}
	q.metrics.enqueued.Add(float64(count))
	return count, nil
}

// Pending returns the number of queue rows still waiting for a batch
func (q *Queue) Pending() (int64, error) {
	return q.db.CountPendingWiki(nil)
}

// ResolveBatch fetches the names of up to maxRows queued items and stores
// them. It returns false when there was nothing to do.
func (q *Queue) ResolveBatch(ctx context.Context, maxRows int) (bool, error) {
	switch {
	case maxRows == 0 || !q.Enabled():
		return false, nil
	case maxRows < 0:
		maxRows = 1
	case maxRows > MaxBatchRows:
		maxRows = MaxBatchRows
	}
	pending, err := q.db.PendingWiki(maxRows, nil)
	if err != nil {
		return false, err
	}
	// One position per item. The first queued row wins.
	positions := make(map[string]string)
	var ids []string
	for _, row := range pending {
		if row.WikiID == nil || !strings.HasPrefix(*row.WikiID, "q") {
			continue
		}
		if _, seen := positions[*row.WikiID]; seen {
			continue
		}
		positions[*row.WikiID] = row.PositionID
		ids = append(ids, *row.WikiID)
	}
	if len(ids) == 0 {
		return false, nil
	}
	labels, err := q.config.Labeler.Names(ctx, ids, q.config.Languages)
	if err != nil {
		return false, fmt.Errorf("fetch wikidata names: %w", err)
	}
	normalizer := q.db.Normalizer()
	added := 0
	err = q.db.Transaction(true).Do(func(txn *database.Txn) error {
		for _, id := range ids {
			positionID := positions[id]
			var rows []models.Toponym
			for _, group := range labels[id] {
				for _, name := range group.Names {
					sig := normalizer.Normalize(name)
					rows = append(rows, models.Toponym{
						PositionID:  &positionID,
						SourceName:  SourceName,
						Name:        name,
						ASCIIName:   sig.ASCIIName,
						Pattern:     sig.Pattern,
						Tokens:      sig.Tokens,
						ASCIITokens: sig.ASCIITokens,
						Language:    group.Language,
						Comment:     commentPrefix + id,
					})
				}
			}
			count, err := q.db.AddKnownToponyms(rows, txn)
			if err != nil {
				return err
			}
			added += count
			if err := q.db.MarkWikiProcessed(id, txn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	q.metrics.batches.Inc()
	q.metrics.items.Add(float64(len(ids)))
	q.metrics.toponyms.Add(float64(added))
	q.logger.Info(
		"processed wikidata batch",
		"items", len(ids),
		"toponyms", added,
	)
	if q.config.EventBus != nil {
		q.config.EventBus.Publish(
			event.WikiBatchEventType,
			event.NewEvent(
				event.WikiBatchEventType,
				event.WikiBatchEvent{Items: len(ids), Toponyms: added},
			),
		)
	}
	return true, nil
}

// Drain resolves batches until the queue is empty, pausing between batches.
// It returns the number of batches processed.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	batches := 0
	for {
		ok, err := q.ResolveBatch(ctx, q.config.BatchRows)
		if err != nil {
			return batches, err
		}
		if !ok {
			return batches, nil
		}
		batches++
		q.logger.Info(
			"draining wikidata queue",
			"batch", batches,
			"batch_rows", q.config.BatchRows,
		)
		if q.config.Pause == 0 {
			if err := ctx.Err(); err != nil {
				return batches, err
			}
			continue
		}
		timer := time.NewTimer(q.config.Pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return batches, ctx.Err()
		case <-timer.C:
		}
	}
}
