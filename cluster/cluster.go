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

// Package cluster groups positions that lie within a radius of each other.
//
// Positions are visited one at a time. Each joins the clusters it is close to,
// merging them when there are several, so the result is single-linkage
// clustering with a hard radius. When several clusters merge the one found
// first keeps its number, which makes numbering depend on visiting order.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrNoDatabase    = errors.New("cluster: no database configured")
	ErrNoSources     = errors.New("no sources given")
	ErrInvalidRadius = errors.New("radius must be positive")
)

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Database     *database.Database
}

// Engine rebuilds the cluster table
type Engine struct {
	config  Config
	logger  *slog.Logger
	db      *database.Database
	metrics *clusterMetrics
}

func New(cfg Config) (*Engine, error) {
	if cfg.Database == nil {
		return nil, ErrNoDatabase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &Engine{
		config: cfg,
		logger: cfg.Logger.With("component", "cluster"),
		db:     cfg.Database,
	}
	if cfg.PromRegistry != nil {
		e.metrics = newClusterMetrics(cfg.PromRegistry)
	}
	return e, nil
}

// Result is the outcome of a clustering run
type Result struct {
	Sources   []string
	Summary   []database.ClusterSummaryRow
	RadiusKm  float64
	Positions int
}

// Clusters returns the number of clusters found
func (r *Result) Clusters() int {
	return len(r.Summary)
}

// Header is the export header for Summary
func (r *Result) Header() []string {
	header := []string{"sources", "Latitude", "Longitude", "cnt_points", "cnt_sources"}
	for _, source := range r.Sources {
		header = append(header, "cnt_"+source)
	}
	return header
}

// Cluster rebuilds the cluster table from the positions of sources and
// summarizes it. The run is not interrupted once started; ctx is only
// checked before it begins.
func (e *Engine) Cluster(ctx context.Context, sources []string, radiusKm float64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, radiusKm)
	}
	if err := e.db.RequireSource(nil, sources...); err != nil {
		return nil, err
	}
	result := &Result{
		Sources:  slices.Clone(sources),
		RadiusKm: radiusKm,
	}
	err := e.db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := e.db.ResetClusters(txn); err != nil {
			return err
		}
		positions, err := e.db.ClusterPositions(sources, txn)
		if err != nil {
			return err
		}
		for i := range positions {
			if err := e.place(&positions[i], radiusKm, txn); err != nil {
				return err
			}
		}
		result.Positions = len(positions)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cluster positions: %w", err)
	}
	result.Summary, err = e.db.ClusterSummary(sources, nil)
	if err != nil {
		return nil, err
	}
	e.logger.Info(
		"clustering finished",
		"sources", sources,
		"radius_km", radiusKm,
		"positions", result.Positions,
		"clusters", result.Clusters(),
	)
	if e.metrics != nil {
		e.metrics.runs.Inc()
		e.metrics.positions.Add(float64(result.Positions))
	}
	if e.config.EventBus != nil {
		e.config.EventBus.Publish(
			event.ClusterCompletedEventType,
			event.NewEvent(event.ClusterCompletedEventType, event.ClusterCompletedEvent{
				Sources:   result.Sources,
				RadiusKm:  radiusKm,
				Positions: result.Positions,
				Clusters:  result.Clusters(),
			}),
		)
	}
	return result, nil
}

// place assigns a position to a cluster and inserts it
func (e *Engine) place(p *models.Position, radiusKm float64, txn *database.Txn) error {
	var candidates []models.ClusterMember
	for _, box := range BoundingBox(p.Latitude, p.Longitude, radiusKm).Ranges() {
		members, err := e.db.ClusterMembersInBox(box.LatLo, box.LatHi, box.LngLo, box.LngHi, txn)
		if err != nil {
			return err
		}
		candidates = append(candidates, members...)
	}
	// Boxes split at the antimeridian are each ordered on their own
	slices.SortStableFunc(candidates, func(a, b models.ClusterMember) int {
		return a.ClusterNr - b.ClusterNr
	})
	var found []int
	for _, c := range candidates {
		if slices.Contains(found, c.ClusterNr) {
			continue
		}
		if Within(p.Latitude, p.Longitude, c.Lat, c.Lng, radiusKm) {
			found = append(found, c.ClusterNr)
		}
	}
	var nr int
	if len(found) == 0 {
		var err error
		nr, err = e.db.NextClusterNr(txn)
		if err != nil {
			return err
		}
	} else {
		nr = found[0]
		for _, other := range found[1:] {
			if err := e.db.RelabelCluster(other, nr, txn); err != nil {
				return err
			}
		}
	}
	return e.db.AddClusterMember(&models.ClusterMember{
		PositionID: p.ID,
		Lat:        p.Latitude,
		Lng:        p.Longitude,
		ClusterNr:  nr,
	}, txn)
}

// Membership returns the positions of every cluster, keyed by cluster number
func (e *Engine) Membership(ctx context.Context) (map[int][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	members, err := e.db.ClusterMembers(nil)
	if err != nil {
		return nil, err
	}
	ret := make(map[int][]string)
	for _, m := range members {
		ret[m.ClusterNr] = append(ret[m.ClusterNr], m.PositionID)
	}
	return ret, nil
}
