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

// Package matcher writes candidate edges between toponyms whose normalized
// signatures are similar.
package matcher

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
	"github.com/blinklabs-io/toponym/normalize"
	"github.com/blinklabs-io/toponym/task"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// TaskName is the task runner name of a matcher run
	TaskName = "matcher"
	// MatchSuffix ends a progress message reporting a written edge
	MatchSuffix = "_match"

	DefaultThreshold     = 0.75
	DefaultMaxRounds     = 3
	DefaultCandidateRows = 500
)

var (
	ErrNoDatabase     = errors.New("matcher: no database configured")
	ErrMatcherRunning = errors.New("a matcher is already running")
)

// Resolver places toponyms between rounds so they can serve as candidates in
// the next one
type Resolver interface {
	ResolveAll(ctx context.Context) (int, error)
}

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
	// Scorer defaults to TokenSetScorer
	Scorer Scorer
	// Resolver, when set, runs after every round
	Resolver Resolver
	// Threshold is the lowest score that produces a suggestion
	Threshold float64
	// MaxRounds limits the rounds of a run
	MaxRounds int
	// CandidateRows limits the candidates loaded per toponym
	CandidateRows int
}

// Progress reports the state of a run after each toponym
type Progress struct {
	Message    string `json:"multi_string"`
	Round      int    `json:"round_count"`
	LastID     uint   `json:"last"`
	PrevLastID uint   `json:"prev_last"`
	Iterator   int    `json:"iterator"`
}

// Matched reports whether the toponym just processed got a new edge
func (p Progress) Matched() bool {
	return strings.HasSuffix(p.Message, MatchSuffix)
}

type Matcher struct {
	config  Config
	logger  *slog.Logger
	db      *database.Database
	metrics *matcherMetrics
}

func New(cfg Config) (*Matcher, error) {
	if cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Scorer == nil {
		cfg.Scorer = TokenSetScorer{}
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.CandidateRows <= 0 {
		cfg.CandidateRows = DefaultCandidateRows
	}
	m := &Matcher{
		config: cfg,
		logger: cfg.Logger.With("component", "matcher"),
		db:     cfg.Database,
	}
	if cfg.PromRegistry != nil {
		m.metrics = newMatcherMetrics(cfg.PromRegistry)
	}
	return m, nil
}

// Run walks the unplaced toponyms of source, or of every source when empty,
// and writes a suggestion for each placed candidate that scores at or above
// the threshold. Rounds repeat until one writes nothing or MaxRounds is
// reached. report, when not nil, is called after every toponym.
func (m *Matcher) Run(ctx context.Context, source string, report func(Progress)) error {
	written, rounds, err := m.run(ctx, source, report)
	result := "completed"
	switch {
	case errors.Is(err, context.Canceled):
		result = "killed"
	case err != nil:
		result = "failed"
	}
	if m.metrics != nil {
		m.metrics.runs.WithLabelValues(result).Inc()
	}
	m.logger.Info(
		"matcher run finished",
		"source", source,
		"rounds", rounds,
		"written", written,
		"result", result,
	)
	m.publish(event.MatchCompletedEventType, event.MatchCompletedEvent{
		Source:  source,
		Rounds:  rounds,
		Written: written,
		Err:     err,
	})
	return err
}

func (m *Matcher) run(ctx context.Context, source string, report func(Progress)) (int, int, error) {
	if source != "" {
		if err := m.db.RequireSource(nil, source); err != nil {
			return 0, 0, err
		}
	}
	total := 0
	var prevLast uint
	round := 0
	for round < m.config.MaxRounds {
		round++
		queue, err := m.db.MatchQueue(source, nil)
		if err != nil {
			return total, round, err
		}
		roundWritten := 0
		var last uint
		for i := range queue {
			if err := ctx.Err(); err != nil {
				return total, round, err
			}
			toponym := &queue[i]
			written, err := m.matchToponym(toponym)
			if err != nil {
				return total, round, err
			}
			roundWritten += written
			last = toponym.ID
			progress := Progress{
				Round:      round,
				LastID:     last,
				PrevLastID: prevLast,
				Iterator:   i + 1,
				Message:    fmt.Sprintf("scanned %s", toponym.Name),
			}
			if written > 0 {
				progress.Message = fmt.Sprintf(
					"%s %s%s",
					toponym.Name,
					m.config.Scorer.Name(),
					MatchSuffix,
				)
			}
			if report != nil {
				report(progress)
			}
			m.publish(event.MatcherProgressEventType, event.MatcherProgressEvent(progress))
		}
		total += roundWritten
		prevLast = last
		m.logger.Debug("matcher round finished", "round", round, "written", roundWritten)
		if roundWritten == 0 {
			break
		}
		if m.config.Resolver != nil {
			if _, err := m.config.Resolver.ResolveAll(ctx); err != nil {
				return total, round, err
			}
		}
	}
	return total, round, nil
}

// MatchOne matches a single toponym and returns the number of new suggestions
func (m *Matcher) MatchOne(ctx context.Context, toponymID uint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	toponym, err := m.db.GetToponym(toponymID, nil)
	if err != nil {
		return 0, err
	}
	return m.matchToponym(toponym)
}

func (m *Matcher) matchToponym(toponym *models.Toponym) (int, error) {
	if m.metrics != nil {
		m.metrics.scanned.Inc()
	}
	if toponym.Placed() {
		return 0, nil
	}
	edges, err := m.score(toponym, true, 0)
	if err != nil {
		return 0, err
	}
	return m.write(models.SuggestionTable, edges)
}

type scored struct {
	edge  models.Edge
	score float64
}

// score compares toponym against its candidates and returns the edges at or
// above threshold. Placed selects suggestion candidates, otherwise Nemo ones.
func (m *Matcher) score(toponym *models.Toponym, placed bool, threshold float64) ([]scored, error) {
	if threshold <= 0 {
		threshold = m.config.Threshold
	}
	sig := SignatureOf(toponym)
	tokens := mergeTokens(
		normalize.TokenSet(toponym.Tokens),
		normalize.TokenSet(toponym.ASCIITokens),
	)
	candidates, err := m.db.TokenCandidates(tokens, toponym.ID, placed, m.config.CandidateRows, nil)
	if err != nil {
		return nil, err
	}
	if len(candidates) >= m.config.CandidateRows {
		m.logger.Warn(
			"candidate limit reached, keeping the closest token matches",
			"toponym_id", toponym.ID,
			"name", toponym.Name,
			"limit", m.config.CandidateRows,
		)
	}
	var ret []scored
	for i := range candidates {
		score := m.config.Scorer.Score(sig, SignatureOf(&candidates[i]))
		if score < threshold {
			continue
		}
		ret = append(ret, scored{
			score: score,
			edge: models.Edge{
				AddedToponymID:  toponym.ID,
				StableToponymID: candidates[i].ID,
				Comment:         fmt.Sprintf("%s %.2f", m.config.Scorer.Name(), score),
			},
		})
	}
	return ret, nil
}

func (m *Matcher) write(table models.EdgeTable, edges []scored) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	rows := make([]models.Edge, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, e.edge)
	}
	written, err := m.db.AddEdges(table, rows, nil)
	if err != nil {
		return 0, err
	}
	if m.metrics != nil {
		m.metrics.suggestions.WithLabelValues(string(table)).Add(float64(written))
	}
	return written, nil
}

// Start launches a run on runner unless one is already running. The task
// state holds the latest Progress.
func (m *Matcher) Start(runner *task.Runner, source string) (*task.Task, error) {
	if runner.Running(TaskName) {
		return nil, ErrMatcherRunning
	}
	t := runner.Launch(TaskName, func(ctx context.Context, t *task.Task) error {
		message := "No matches found yet"
		t.SetState(Progress{Message: message})
		return m.Run(ctx, source, func(p Progress) {
			if p.Matched() {
				message = fmt.Sprintf(
					"%s on %d/%d round #%d",
					p.Message,
					p.Iterator,
					p.PrevLastID,
					p.Round,
				)
			}
			p.Message = message
			t.SetState(p)
		})
	})
	return t, nil
}

func (m *Matcher) publish(eventType event.EventType, data any) {
	if m.config.EventBus == nil {
		return
	}
	m.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func mergeTokens(a []string, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	ret := make([]string, 0, len(a)+len(b))
	for _, tokens := range [][]string{a, b} {
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			ret = append(ret, token)
		}
	}
	return ret
}
