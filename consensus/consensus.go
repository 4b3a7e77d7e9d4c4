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

// Package consensus places unplaced toponyms whose remaining suggestions all
// point at the same position.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	mergeCommentHeader = "All remaining suggestions pointed to the same position: \n"
	approvedPrefix     = "Automatically Approved \n "
)

var ErrNoDatabase = errors.New("consensus: no database configured")

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	// ResolveOnMatch runs a full resolve after every successful matcher run
	ResolveOnMatch bool
}

type Consensus struct {
	config  Config
	logger  *slog.Logger
	db      *database.Database
	metrics *consensusMetrics
}

func New(cfg Config) (*Consensus, error) {
	if cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &Consensus{
		config: cfg,
		logger: cfg.Logger.With("component", "consensus"),
		db:     cfg.Database,
	}
	if cfg.PromRegistry != nil {
		c.metrics = newConsensusMetrics(cfg.PromRegistry)
	}
	if cfg.EventBus != nil && cfg.ResolveOnMatch {
		cfg.EventBus.SubscribeFunc(
			event.MatchCompletedEventType,
			c.handleEventMatchCompleted,
		)
	}
	return c, nil
}

// Resolve places every mappable toponym, or only target when it is not nil.
// With a target it returns the comment written to the toponym, or a note that
// the target had nothing to merge. Calling it again changes nothing.
func (c *Consensus) Resolve(ctx context.Context, target *uint) (string, error) {
	comment := ""
	if target != nil {
		comment = fmt.Sprintf("No suggestions for %d", *target)
	}
	mappable, err := c.db.MappableSuggestions(target, nil)
	if err != nil {
		return "", err
	}
	for _, m := range mappable {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		merged, ok, err := c.merge(m.ToponymID)
		if err != nil {
			return "", err
		}
		if ok {
			comment = merged
		}
	}
	return comment, nil
}

// ResolveAll places every mappable toponym and returns how many were placed
func (c *Consensus) ResolveAll(ctx context.Context) (int, error) {
	mappable, err := c.db.MappableSuggestions(nil, nil)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range mappable {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		_, ok, err := c.merge(m.ToponymID)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	if count > 0 {
		c.logger.Info("placed toponyms by consensus", "count", count)
	}
	return count, nil
}

// merge places a single toponym. The mappable check is repeated inside the
// transaction so a toponym placed meanwhile is skipped.
func (c *Consensus) merge(toponymID uint) (string, bool, error) {
	var comment string
	var positionID string
	err := c.db.Transaction(true).Do(func(txn *database.Txn) error {
		current, err := c.db.MappableSuggestions(&toponymID, txn)
		if err != nil {
			return err
		}
		if len(current) == 0 {
			return nil
		}
		positionID = current[0].PositionID
		candidates, err := c.db.UnresolvedCandidates(toponymID, txn)
		if err != nil {
			return err
		}
		comment = mergeComment(candidates)
		if err := c.db.ConnectToponym(toponymID, positionID, comment, txn); err != nil {
			return err
		}
		_, err = c.db.AcceptUnresolved(
			models.SuggestionTable,
			toponymID,
			approvedPrefix,
			txn,
		)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("merge toponym %d: %w", toponymID, err)
	}
	if positionID == "" {
		return "", false, nil
	}
	c.logger.Debug(
		"toponym placed by consensus",
		"toponym_id", toponymID,
		"position_id", positionID,
	)
	if c.metrics != nil {
		c.metrics.merges.Inc()
	}
	if c.config.EventBus != nil {
		c.config.EventBus.Publish(
			event.ConsensusMergedEventType,
			event.NewEvent(
				event.ConsensusMergedEventType,
				event.ConsensusMergedEvent{
					ToponymID:  toponymID,
					PositionID: positionID,
					Comment:    comment,
				},
			),
		)
	}
	return comment, true, nil
}

// mergeComment lists every distinct stable name and edge comment behind a merge
func mergeComment(candidates []database.EdgeCandidate) string {
	var b strings.Builder
	b.WriteString(mergeCommentHeader)
	seen := make(map[database.EdgeCandidate]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		fmt.Fprintf(&b, "%s (%s) \n ", candidate.Name, candidate.Comment)
	}
	return b.String()
}

func (c *Consensus) handleEventMatchCompleted(evt event.Event) {
	e, ok := evt.Data.(event.MatchCompletedEvent)
	if !ok || e.Err != nil {
		return
	}
	if _, err := c.ResolveAll(context.Background()); err != nil {
		c.logger.Error("failed to resolve after matcher run", "error", err)
	}
}
