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

// Package navigator walks the queue of toponyms that need a human decision
// and records the decisions.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultNemoCount = 10
	DefaultNemoTTL   = 10 * time.Minute
)

var (
	ErrNoDatabase = errors.New("navigator: no database configured")
	// ErrInvalidSelection is returned for a decision on an option that cannot
	// place the target
	ErrInvalidSelection = errors.New("invalid selection")
)

// NemoMatcher writes Nemo edges for a toponym
type NemoMatcher interface {
	TopN(ctx context.Context, toponymID uint, n int) (int, error)
}

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	// Nemo populates Nemo edges before a Nemo queue entry is shown. Nemo
	// pages only show existing edges when it is nil.
	Nemo NemoMatcher
	// NemoCount is the number of Nemo edges requested per toponym
	NemoCount int
	// NemoTTL is how long a toponym is considered matched after a Nemo run
	NemoTTL time.Duration
}

type Navigator struct {
	config    Config
	logger    *slog.Logger
	db        *database.Database
	metrics   *navigatorMetrics
	nemoCache *cache.Cache
}

func New(cfg Config) (*Navigator, error) {
	if cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.NemoCount <= 0 {
		cfg.NemoCount = DefaultNemoCount
	}
	if cfg.NemoTTL <= 0 {
		cfg.NemoTTL = DefaultNemoTTL
	}
	n := &Navigator{
		config:    cfg,
		logger:    cfg.Logger.With("component", "navigator"),
		db:        cfg.Database,
		nemoCache: cache.New(cfg.NemoTTL, 2*cfg.NemoTTL),
	}
	if cfg.PromRegistry != nil {
		n.metrics = newNavigatorMetrics(cfg.PromRegistry)
	}
	return n, nil
}

// Row is one competing candidate for the selected toponym
type Row struct {
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	AddedToponymID    string   `json:"added_toponym_id"`
	NewName           string   `json:"new_name"`
	SourceID          string   `json:"source_id"`
	OldToponymID      string   `json:"old_toponym_id"`
	OldName           string   `json:"old_name"`
	SuggestionComment string   `json:"suggestion_comment"`
	PositionID        string   `json:"position_id"`
	PositionComment   string   `json:"position_comment"`
	AltNames          string   `json:"alt_names"`
	ParentName        string   `json:"parent_name"`
	Selected          bool     `json:"selected"`
}

// Page is the queue entry selected by Goto
type Page struct {
	Rows     []Row `json:"rows"`
	Index    int   `json:"index"`
	Total    int   `json:"total"`
	TargetID uint  `json:"target_id,omitempty"`
}

// EmptyRow is the only row of a page over an empty queue
func EmptyRow() Row {
	return Row{
		AddedToponymID:    "No toponyms",
		NewName:           "to",
		SourceID:          "disambiguate",
		OldToponymID:      "N/A",
		OldName:           "N/A",
		SuggestionComment: "N/A",
		PositionID:        "N/A",
		PositionComment:   "N/A",
		AltNames:          "N/A",
		ParentName:        "N/A",
	}
}

// clamp maps a requested index onto [0, total). Negative values count back
// from the end.
func clamp(index *int, total int) int {
	n := 0
	if index != nil {
		n = *index
	}
	switch {
	case n >= total:
		n = total - 1
	case n < 0:
		n = max(total+n, 0)
	}
	return n
}

func (n *Navigator) queue(nemo bool) ([]uint, error) {
	if nemo {
		return n.db.NemoQueue(nil)
	}
	return n.db.SuggestionQueue(nil)
}

// Goto selects the toponym at index in the suggestion or Nemo queue and
// returns its unresolved candidates
func (n *Navigator) Goto(ctx context.Context, index *int, nemo bool) (Page, error) {
	queue, err := n.queue(nemo)
	if err != nil {
		return Page{}, err
	}
	if len(queue) == 0 {
		return Page{Rows: []Row{EmptyRow()}}, nil
	}
	idx := clamp(index, len(queue))
	target := queue[idx]
	if nemo {
		if err := n.ensureNemo(ctx, target); err != nil {
			return Page{}, err
		}
	}
	rows, err := n.db.DisambiguationRows(models.EdgeTableFor(nemo), target, nil)
	if err != nil {
		return Page{}, err
	}
	page := Page{
		Index:    idx,
		Total:    len(queue),
		TargetID: target,
		Rows:     make([]Row, 0, len(rows)),
	}
	for _, r := range rows {
		page.Rows = append(page.Rows, Row{
			AddedToponymID:    strconv.FormatUint(uint64(r.AddedToponymID), 10),
			NewName:           r.NewName,
			SourceID:          r.SourceID,
			OldToponymID:      strconv.FormatUint(uint64(r.OldToponymID), 10),
			OldName:           r.OldName,
			SuggestionComment: r.SuggestionComment,
			PositionID:        deref(r.PositionID),
			PositionComment:   deref(r.PositionComment),
			AltNames:          deref(r.AltNames),
			ParentName:        deref(r.ParentName),
			Latitude:          r.Latitude,
			Longitude:         r.Longitude,
			Selected:          true,
		})
	}
	return page, nil
}

// ensureNemo runs the Nemo matcher for target unless it ran recently
func (n *Navigator) ensureNemo(ctx context.Context, target uint) error {
	if n.config.Nemo == nil {
		return nil
	}
	key := strconv.FormatUint(uint64(target), 10)
	if _, found := n.nemoCache.Get(key); found {
		return nil
	}
	written, err := n.config.Nemo.TopN(ctx, target, n.config.NemoCount)
	if err != nil {
		return fmt.Errorf("build nemo list for %d: %w", target, err)
	}
	n.nemoCache.SetDefault(key, written)
	n.logger.Debug("nemo list built", "toponym_id", target, "edges", written)
	return nil
}

// ForgetNemo drops the memoised Nemo run for a toponym
func (n *Navigator) ForgetNemo(target uint) {
	n.nemoCache.Delete(strconv.FormatUint(uint64(target), 10))
}

// Decide accepts the edge (target, option). In the suggestion queue the
// target also takes the position of option. Other edges keep their outcome.
func (n *Navigator) Decide(ctx context.Context, target uint, option uint, nemo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	table := models.EdgeTableFor(nemo)
	err := n.db.Transaction(true).Do(func(txn *database.Txn) error {
		if !nemo {
			optionToponym, err := n.db.GetToponym(option, txn)
			if err != nil {
				return err
			}
			if !optionToponym.Placed() {
				return fmt.Errorf("%w: toponym %d has no position", ErrInvalidSelection, option)
			}
		}
		changed, err := n.db.SetOutcome(table, target, option, true, "", txn)
		if err != nil {
			return err
		}
		if changed == 0 {
			return fmt.Errorf("%w: no open edge from %d to %d", ErrInvalidSelection, target, option)
		}
		return n.db.MarkDisambiguated(target, option, !nemo, txn)
	})
	if err != nil {
		return err
	}
	n.logger.Info(
		"toponym disambiguated",
		"toponym_id", target,
		"option", option,
		"table", table,
	)
	if n.metrics != nil {
		n.metrics.decisions.WithLabelValues(string(table)).Inc()
	}
	n.publish(event.DecisionEventType, event.DecisionEvent{
		Table:    string(table),
		TargetID: target,
		OptionID: option,
	})
	return nil
}

// Reject marks each edge (target, option) rejected so it is never offered again
func (n *Navigator) Reject(ctx context.Context, target uint, options []uint, nemo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	table := models.EdgeTableFor(nemo)
	rejected := 0
	err := n.db.Transaction(true).Do(func(txn *database.Txn) error {
		for _, option := range options {
			changed, err := n.db.SetOutcome(table, target, option, false, "", txn)
			if err != nil {
				return err
			}
			rejected += changed
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Info(
		"candidates rejected",
		"toponym_id", target,
		"options", options,
		"table", table,
	)
	if n.metrics != nil {
		n.metrics.rejections.WithLabelValues(string(table)).Add(float64(rejected))
	}
	n.publish(event.RejectionEventType, event.RejectionEvent{
		Table:     string(table),
		TargetID:  target,
		OptionIDs: options,
	})
	return nil
}

// NemoEntry is a toponym in the Nemo queue
type NemoEntry struct {
	Name string `json:"name"`
	ID   uint   `json:"id"`
}

// NextNemo returns the toponym at index in the Nemo queue, clamped like Goto.
// It returns false when nothing is unplaced.
func (n *Navigator) NextNemo(ctx context.Context, index int) (NemoEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return NemoEntry{}, false, err
	}
	queue, err := n.db.NemoQueue(nil)
	if err != nil {
		return NemoEntry{}, false, err
	}
	if len(queue) == 0 {
		return NemoEntry{}, false, nil
	}
	id := queue[clamp(&index, len(queue))]
	toponym, err := n.db.GetToponym(id, nil)
	if err != nil {
		return NemoEntry{}, false, err
	}
	return NemoEntry{ID: toponym.ID, Name: toponym.Name}, true, nil
}

func (n *Navigator) publish(eventType event.EventType, data any) {
	if n.config.EventBus == nil {
		return
	}
	n.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
