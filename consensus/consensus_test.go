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

package consensus_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/toponym/consensus"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gazetteer struct {
	*testutil.Fixture
	stableP1a uint
	stableP1b uint
	stableP2  uint
}

func newGazetteer(t *testing.T) *gazetteer {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2020)
	f.Source("survey1", 1850)
	f.Position("P1", "geonno", 60.0, 10.0, "")
	f.Position("P2", "geonno", 61.0, 11.0, "")
	return &gazetteer{
		Fixture:   f,
		stableP1a: f.Toponym("geonno", "North Lake", "P1"),
		stableP1b: f.Toponym("geonno", "Nordvatnet", "P1"),
		stableP2:  f.Toponym("geonno", "North Lake", "P2"),
	}
}

func newConsensus(t *testing.T, g *gazetteer) *consensus.Consensus {
	c, err := consensus.New(consensus.Config{Database: g.DB})
	require.NoError(t, err)
	return c
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := consensus.New(consensus.Config{})
	require.ErrorIs(t, err, consensus.ErrNoDatabase)
}

func TestResolveUnanimous(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP1a, nil)
	g.Edge(models.SuggestionTable, added, g.stableP1b, nil)
	c := newConsensus(t, g)

	comment, err := c.Resolve(context.Background(), &added)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(comment, "All remaining suggestions pointed to the same position: \n"))
	assert.Contains(t, comment, "North Lake (fixture) \n ")
	assert.Contains(t, comment, "Nordvatnet (fixture) \n ")

	toponym, err := g.DB.GetToponym(added, nil)
	require.NoError(t, err)
	require.NotNil(t, toponym.PositionID)
	assert.Equal(t, "P1", *toponym.PositionID)
	assert.True(t, strings.HasPrefix(toponym.Comment, "All remaining suggestions"))

	edges, err := g.DB.Edges(models.SuggestionTable, added, nil)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, edge := range edges {
		assert.True(t, edge.Accepted())
		assert.True(t, strings.HasPrefix(edge.Comment, "Automatically Approved \n "))
	}

	// A second run finds nothing and writes nothing
	comment, err = c.Resolve(context.Background(), &added)
	require.NoError(t, err)
	assert.Equal(t, "No suggestions for "+itoa(added), comment)
	again, err := g.DB.GetToponym(added, nil)
	require.NoError(t, err)
	assert.Equal(t, toponym.Comment, again.Comment)
	edgesAgain, err := g.DB.Edges(models.SuggestionTable, added, nil)
	require.NoError(t, err)
	assert.Equal(t, edges, edgesAgain)
}

func TestResolveAmbiguous(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP1a, nil)
	g.Edge(models.SuggestionTable, added, g.stableP2, nil)
	c := newConsensus(t, g)

	count, err := c.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	toponym, err := g.DB.GetToponym(added, nil)
	require.NoError(t, err)
	assert.False(t, toponym.Placed())
	edges, err := g.DB.Edges(models.SuggestionTable, added, nil)
	require.NoError(t, err)
	for _, edge := range edges {
		assert.True(t, edge.Unresolved())
	}
}

func TestResolveIgnoresRejected(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP1a, nil)
	g.Edge(models.SuggestionTable, added, g.stableP2, models.OutcomeRejected())
	c := newConsensus(t, g)

	// The rejected edge to P2 does not make the toponym ambiguous
	count, err := c.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	toponym, err := g.DB.GetToponym(added, nil)
	require.NoError(t, err)
	require.NotNil(t, toponym.PositionID)
	assert.Equal(t, "P1", *toponym.PositionID)

	edges, err := g.DB.Edges(models.SuggestionTable, added, nil)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.True(t, edges[0].Accepted())
	assert.True(t, edges[1].Rejected())
}

func TestResolveOnlyRejected(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP1a, models.OutcomeRejected())
	c := newConsensus(t, g)

	count, err := c.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestResolveSkipsAccepted(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP2, models.OutcomeAccepted())
	g.Edge(models.SuggestionTable, added, g.stableP1a, nil)
	c := newConsensus(t, g)

	count, err := c.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestResolveAllTargetsEveryToponym(t *testing.T) {
	g := newGazetteer(t)
	first := g.Toponym("survey1", "Lake North", "")
	second := g.Toponym("survey1", "North Lake", "")
	g.Edge(models.SuggestionTable, first, g.stableP1a, nil)
	g.Edge(models.SuggestionTable, second, g.stableP2, nil)
	registry := prometheus.NewRegistry()
	c, err := consensus.New(consensus.Config{Database: g.DB, PromRegistry: registry})
	require.NoError(t, err)

	comment, err := c.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, comment)
	for id, want := range map[uint]string{first: "P1", second: "P2"} {
		toponym, err := g.DB.GetToponym(id, nil)
		require.NoError(t, err)
		require.NotNil(t, toponym.PositionID)
		assert.Equal(t, want, *toponym.PositionID)
	}
	assert.Equal(t, 2.0, testutil.CounterValue(t, registry, "toponym_consensus_merges_total"))
}

func TestResolveCancelled(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP1a, nil)
	c := newConsensus(t, g)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ResolveAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMergedEventAndResolveOnMatch(t *testing.T) {
	g := newGazetteer(t)
	added := g.Toponym("survey1", "Lake North", "")
	g.Edge(models.SuggestionTable, added, g.stableP1a, nil)
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, merged := bus.Subscribe(event.ConsensusMergedEventType)
	_, err := consensus.New(consensus.Config{
		Database:       g.DB,
		EventBus:       bus,
		ResolveOnMatch: true,
	})
	require.NoError(t, err)

	bus.Publish(
		event.MatchCompletedEventType,
		event.NewEvent(event.MatchCompletedEventType, event.MatchCompletedEvent{}),
	)
	evt := testutil.RequireReceive(t, merged, 2*time.Second, "merged event")
	data, ok := evt.Data.(event.ConsensusMergedEvent)
	require.True(t, ok)
	assert.Equal(t, added, data.ToponymID)
	assert.Equal(t, "P1", data.PositionID)
}
