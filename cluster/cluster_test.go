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

package cluster_test

import (
	"context"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/blinklabs-io/toponym/cluster"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/event"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	assert.InDelta(t, 99.9, cluster.Distance(0, 0, 0, 0.9), 1e-9)
	assert.InDelta(t, 111.0, cluster.Distance(0, 0, 1, 0), 1e-9)
	assert.InDelta(t, 0.0, cluster.Distance(60, 10, 60, 10), 0)
	// Symmetric
	assert.InDelta(t, cluster.Distance(60, 10, 61, 12), cluster.Distance(61, 12, 60, 10), 1e-9)
	assert.True(t, cluster.Within(0, 0, 0, 1, 111))
	assert.False(t, cluster.Within(0, 0, 0, 1, 110.999))
}

func TestBoundingBox(t *testing.T) {
	box := cluster.BoundingBox(0, 0, 111)
	assert.InDelta(t, -1.0, box.LatLo, 1e-12)
	assert.InDelta(t, 1.0, box.LatHi, 1e-12)
	// Widened past one degree by the latitude of the box edge
	assert.Greater(t, box.LngHi, 1.0)

	// Every point within the radius at high latitude falls inside the box
	lat, lng, radius := 70.0, 15.0, 80.0
	box = cluster.BoundingBox(lat, lng, radius)
	for _, d := range []float64{-2.1, -1, 0, 1, 2.1} {
		if cluster.Within(lat, lng, lat, lng+d, radius) {
			assert.GreaterOrEqual(t, lng+d, box.LngLo)
			assert.LessOrEqual(t, lng+d, box.LngHi)
		}
	}

	polar := cluster.BoundingBox(89.5, 0, 111)
	assert.InDelta(t, -180.0, polar.LngLo, 0)
	assert.InDelta(t, 180.0, polar.LngHi, 0)
	assert.Len(t, polar.Ranges(), 1)
}

func TestBoundingBoxAntimeridian(t *testing.T) {
	east := cluster.BoundingBox(-17, 179.95, 50).Ranges()
	require.Len(t, east, 2)
	assert.InDelta(t, 180.0, east[0].LngHi, 0)
	assert.InDelta(t, -180.0, east[1].LngLo, 0)
	assert.Greater(t, east[1].LngHi, -179.95)

	west := cluster.BoundingBox(-17, -179.95, 50).Ranges()
	require.Len(t, west, 2)
	assert.InDelta(t, -180.0, west[0].LngLo, 0)
	assert.Less(t, west[1].LngLo, 179.95)
	assert.InDelta(t, 180.0, west[1].LngHi, 0)

	inland := cluster.BoundingBox(60, 10, 50).Ranges()
	require.Len(t, inland, 1)
}

func TestClusterAcrossAntimeridian(t *testing.T) {
	e, _ := newEngine(t, point{"A", -17, 179.95}, point{"B", -17, -179.95})
	require.Less(t, cluster.Distance(-17, 179.95, -17, -179.95), 11.0)
	result, err := e.Cluster(context.Background(), []string{"almanac1"}, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Clusters())
	assert.Equal(t, [][]string{{"A", "B"}}, groups(t, e))
}

type point struct {
	id       string
	lat, lng float64
}

func newEngine(t *testing.T, points ...point) (*cluster.Engine, *testutil.Fixture) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("almanac1", 1901)
	for _, p := range points {
		f.Position(p.id, "geonno", p.lat, p.lng, "")
		f.Toponym("almanac1", "Place "+p.id, p.id)
	}
	e, err := cluster.New(cluster.Config{Database: f.DB})
	require.NoError(t, err)
	return e, f
}

// groups returns the cluster membership as sorted position lists, ignoring
// cluster numbers
func groups(t *testing.T, e *cluster.Engine) [][]string {
	membership, err := e.Membership(context.Background())
	require.NoError(t, err)
	var ret [][]string
	for _, ids := range membership {
		sorted := slices.Clone(ids)
		sort.Strings(sorted)
		ret = append(ret, sorted)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i][0] < ret[j][0] })
	return ret
}

func TestClusterRadius(t *testing.T) {
	e, _ := newEngine(t, point{"A", 0, 0}, point{"B", 0, 0.9})
	ctx := context.Background()

	result, err := e.Cluster(ctx, []string{"almanac1"}, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Positions)
	assert.Equal(t, 1, result.Clusters())
	assert.Equal(t, [][]string{{"A", "B"}}, groups(t, e))

	result, err = e.Cluster(ctx, []string{"almanac1"}, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Clusters())
	assert.Equal(t, [][]string{{"A"}, {"B"}}, groups(t, e))
}

func TestClusterBoundary(t *testing.T) {
	e, _ := newEngine(t, point{"A", 0, 0}, point{"B", 1, 0})
	result, err := e.Cluster(context.Background(), []string{"almanac1"}, 111)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Clusters())
	result, err = e.Cluster(context.Background(), []string{"almanac1"}, 110.99)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Clusters())
}

func TestClusterMergesThroughBridge(t *testing.T) {
	// P3 is visited last and joins the clusters of P1 and P2
	e, _ := newEngine(t,
		point{"P1", 0, 0},
		point{"P2", 0, 1.8},
		point{"P3", 0, 0.9},
	)
	result, err := e.Cluster(context.Background(), []string{"almanac1"}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Clusters())
	membership, err := e.Membership(context.Background())
	require.NoError(t, err)
	require.Len(t, membership, 1)
	// The first cluster found keeps its number
	assert.Len(t, membership[0], 3)
}

func TestClusterIdempotent(t *testing.T) {
	e, _ := newEngine(t,
		point{"A", 60, 10},
		point{"B", 60.5, 10.2},
		point{"C", 70, 15},
		point{"D", 70, 17},
		point{"E", -33, 151},
	)
	_, err := e.Cluster(context.Background(), []string{"almanac1"}, 80)
	require.NoError(t, err)
	first := groups(t, e)
	_, err = e.Cluster(context.Background(), []string{"almanac1"}, 80)
	require.NoError(t, err)
	assert.Equal(t, first, groups(t, e))
	assert.Equal(t, [][]string{{"A", "B"}, {"C", "D"}, {"E"}}, first)
}

func TestClusterSummary(t *testing.T) {
	_, f := newEngine(t, point{"A", 0, 0}, point{"B", 0, 0.5})
	f.Source("almanac2", 1950)
	f.Toponym("almanac2", "Other A", "A")
	declared := f.Toponym("almanac2", "Elsewhere", "")
	require.NoError(t, f.DB.DeclareForeign(declared, nil))
	registry := prometheus.NewRegistry()
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, completed := bus.Subscribe(event.ClusterCompletedEventType)
	e, err := cluster.New(cluster.Config{Database: f.DB, PromRegistry: registry, EventBus: bus})
	require.NoError(t, err)

	result, err := e.Cluster(context.Background(), []string{"almanac1", "almanac2"}, 100)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"sources", "Latitude", "Longitude", "cnt_points", "cnt_sources", "cnt_almanac1", "cnt_almanac2"},
		result.Header(),
	)
	require.Len(t, result.Summary, 1)
	row := result.Summary[0]
	assert.Equal(t, int64(2), row.Points)
	assert.Equal(t, int64(3), row.Toponyms)
	assert.Equal(t, []int64{2, 1}, row.PerSource)
	assert.ElementsMatch(t, []string{"1901", "1950"}, strings.Split(row.Years, ","))
	assert.Equal(t, 2.0, testutil.CounterValue(t, registry, "toponym_cluster_positions_total"))
	evt := <-completed
	data, ok := evt.Data.(event.ClusterCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, data.Clusters)
}

func TestClusterErrors(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	_, err := e.Cluster(ctx, nil, 10)
	require.ErrorIs(t, err, cluster.ErrNoSources)
	_, err = e.Cluster(ctx, []string{"almanac1"}, 0)
	require.ErrorIs(t, err, cluster.ErrInvalidRadius)
	_, err = e.Cluster(ctx, []string{"missing"}, 10)
	require.ErrorIs(t, err, database.ErrSourceNotFound)

	// No positions is an empty result, not an error
	result, err := e.Cluster(ctx, []string{"almanac1"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Clusters())
}
