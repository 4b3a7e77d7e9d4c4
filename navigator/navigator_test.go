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

package navigator_test

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/event"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/blinklabs-io/toponym/navigator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNemo struct {
	f     *testutil.Fixture
	calls atomic.Int32
	other uint
}

func (m *fakeNemo) TopN(ctx context.Context, toponymID uint, n int) (int, error) {
	m.calls.Add(1)
	if m.other == 0 || m.other == toponymID {
		return 0, nil
	}
	return m.f.DB.AddEdges(models.NemoTable, []models.Edge{{
		AddedToponymID:  toponymID,
		StableToponymID: m.other,
		Comment:         "fake 1.0",
	}}, nil)
}

type queueFixture struct {
	*testutil.Fixture
	added   []uint
	stableA uint
	stableB uint
}

// newQueue builds count ambiguous toponyms, each suggested to both P1 and P2
func newQueue(t *testing.T, count int) *queueFixture {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2020)
	f.Source("survey1", 1850)
	require.NoError(t, f.DB.AddParentRegions([]models.ParentRegion{
		{ID: "NO.46", Name: "Vestland"},
	}, nil))
	f.Position("P1", "geonno", 60.0, 5.0, "NO.46")
	f.Position("P2", "geonno", 69.0, 18.0, "")
	q := &queueFixture{
		Fixture: f,
		stableA: f.Toponym("geonno", "Bergen", "P1"),
		stableB: f.Toponym("geonno", "Berg", "P2"),
	}
	f.Toponym("geonno", "Bjørgvin", "P1")
	for i := range count {
		id := f.Toponym("survey1", "Berg "+strconv.Itoa(i), "")
		f.Edge(models.SuggestionTable, id, q.stableA, nil)
		f.Edge(models.SuggestionTable, id, q.stableB, nil)
		q.added = append(q.added, id)
	}
	return q
}

func newNavigator(t *testing.T, f *testutil.Fixture, nemo navigator.NemoMatcher) *navigator.Navigator {
	n, err := navigator.New(navigator.Config{Database: f.DB, Nemo: nemo})
	require.NoError(t, err)
	return n
}

func intPtr(i int) *int {
	return &i
}

func TestGotoEmptyQueue(t *testing.T) {
	f := testutil.NewFixture(t)
	n := newNavigator(t, f, nil)
	for _, nemo := range []bool{false, true} {
		page, err := n.Goto(context.Background(), intPtr(0), nemo)
		require.NoError(t, err)
		assert.Equal(t, 0, page.Index)
		assert.Equal(t, 0, page.Total)
		require.Len(t, page.Rows, 1)
		row := page.Rows[0]
		assert.Equal(t, "No toponyms", row.AddedToponymID)
		assert.Equal(t, "to", row.NewName)
		assert.Equal(t, "disambiguate", row.SourceID)
		assert.Equal(t, "N/A", row.OldName)
		assert.Equal(t, "N/A", row.ParentName)
		assert.Nil(t, row.Latitude)
	}
}

func TestGotoClamping(t *testing.T) {
	q := newQueue(t, 5)
	n := newNavigator(t, q.Fixture, nil)
	ctx := context.Background()

	last, err := n.Goto(ctx, intPtr(4), false)
	require.NoError(t, err)
	assert.Equal(t, 4, last.Index)
	assert.Equal(t, 5, last.Total)
	assert.Equal(t, q.added[4], last.TargetID)

	testDefs := []struct {
		index *int
		want  int
	}{
		{index: intPtr(10), want: 4},
		{index: intPtr(-1), want: 4},
		{index: intPtr(-2), want: 3},
		{index: intPtr(-50), want: 0},
		{index: nil, want: 0},
	}
	for _, testDef := range testDefs {
		page, err := n.Goto(ctx, testDef.index, false)
		require.NoError(t, err)
		assert.Equal(t, testDef.want, page.Index)
		assert.Equal(t, q.added[testDef.want], page.TargetID)
	}
}

func TestGotoRows(t *testing.T) {
	q := newQueue(t, 1)
	n := newNavigator(t, q.Fixture, nil)
	page, err := n.Goto(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	byPosition := map[string]navigator.Row{}
	for _, row := range page.Rows {
		assert.True(t, row.Selected)
		assert.Equal(t, "Berg 0", row.NewName)
		assert.Equal(t, "survey1", row.SourceID)
		byPosition[row.PositionID] = row
	}
	p1 := byPosition["P1"]
	assert.Equal(t, "Bergen", p1.OldName)
	assert.Equal(t, "Vestland", p1.ParentName)
	require.NotNil(t, p1.Latitude)
	assert.InDelta(t, 60.0, *p1.Latitude, 1e-9)
	names := strings.Split(p1.AltNames, " \n")
	assert.ElementsMatch(t, []string{"Bergen", "Bjørgvin"}, names)
	assert.Empty(t, byPosition["P2"].ParentName)
}

func TestDecide(t *testing.T) {
	q := newQueue(t, 2)
	registry := prometheus.NewRegistry()
	n, err := navigator.New(navigator.Config{Database: q.DB, PromRegistry: registry})
	require.NoError(t, err)
	target := q.added[0]

	require.NoError(t, n.Decide(context.Background(), target, q.stableB, false))
	toponym, err := q.DB.GetToponym(target, nil)
	require.NoError(t, err)
	require.NotNil(t, toponym.PositionID)
	assert.Equal(t, "P2", *toponym.PositionID)
	assert.True(t, strings.HasPrefix(
		toponym.Comment,
		"Disambiguated to "+strconv.FormatUint(uint64(q.stableB), 10)+"\n",
	))
	edges, err := q.DB.Edges(models.SuggestionTable, target, nil)
	require.NoError(t, err)
	for _, edge := range edges {
		if edge.StableToponymID == q.stableB {
			assert.True(t, edge.Accepted())
		} else {
			assert.True(t, edge.Unresolved())
		}
	}
	assert.Equal(t, 1.0, testutil.CounterValue(t, registry, "toponym_navigator_decisions_total"))

	// The decided toponym leaves the queue
	page, err := n.Goto(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, q.added[1], page.TargetID)
}

func TestDecideInvalidOption(t *testing.T) {
	q := newQueue(t, 1)
	n := newNavigator(t, q.Fixture, nil)
	unplaced := q.Toponym("survey1", "Nowhere", "")
	err := n.Decide(context.Background(), q.added[0], unplaced, false)
	require.ErrorIs(t, err, navigator.ErrInvalidSelection)
	// No edge between the two placed toponyms
	err = n.Decide(context.Background(), q.stableA, q.stableB, false)
	require.ErrorIs(t, err, navigator.ErrInvalidSelection)
	toponym, err := q.DB.GetToponym(q.added[0], nil)
	require.NoError(t, err)
	assert.False(t, toponym.Placed())
}

func TestDecideRejectedEdge(t *testing.T) {
	q := newQueue(t, 1)
	n := newNavigator(t, q.Fixture, nil)
	target := q.added[0]
	require.NoError(t, n.Reject(context.Background(), target, []uint{q.stableB}, false))

	err := n.Decide(context.Background(), target, q.stableB, false)
	require.ErrorIs(t, err, navigator.ErrInvalidSelection)
	toponym, err := q.DB.GetToponym(target, nil)
	require.NoError(t, err)
	assert.False(t, toponym.Placed())
	edges, err := q.DB.Edges(models.SuggestionTable, target, nil)
	require.NoError(t, err)
	for _, edge := range edges {
		if edge.StableToponymID == q.stableB {
			assert.True(t, edge.Rejected())
		}
	}
}

func TestReject(t *testing.T) {
	q := newQueue(t, 1)
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, rejections := bus.Subscribe(event.RejectionEventType)
	n, err := navigator.New(navigator.Config{Database: q.DB, EventBus: bus})
	require.NoError(t, err)
	target := q.added[0]

	require.NoError(t, n.Reject(context.Background(), target, []uint{q.stableA}, false))
	edges, err := q.DB.Edges(models.SuggestionTable, target, nil)
	require.NoError(t, err)
	for _, edge := range edges {
		if edge.StableToponymID == q.stableA {
			assert.True(t, edge.Rejected())
		} else {
			assert.True(t, edge.Unresolved())
		}
	}
	evt := <-rejections
	data, ok := evt.Data.(event.RejectionEvent)
	require.True(t, ok)
	assert.Equal(t, target, data.TargetID)

	// Re-emitting the rejected pair is a no-op
	count, err := q.DB.AddEdges(models.SuggestionTable, []models.Edge{{
		AddedToponymID:  target,
		StableToponymID: q.stableA,
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	page, err := n.Goto(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "P2", page.Rows[0].PositionID)
}

func TestNemoGotoMemoised(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("survey1", 1850)
	first := f.Toponym("survey1", "Aslakstad", "")
	second := f.Toponym("survey1", "Aslaksta", "")
	nemo := &fakeNemo{f: f, other: first}
	n := newNavigator(t, f, nemo)

	// Queue order is by name: Aslaksta, Aslakstad
	page, err := n.Goto(context.Background(), intPtr(0), true)
	require.NoError(t, err)
	assert.Equal(t, second, page.TargetID)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Aslakstad", page.Rows[0].OldName)
	assert.Empty(t, page.Rows[0].PositionID)
	assert.Nil(t, page.Rows[0].Latitude)

	_, err = n.Goto(context.Background(), intPtr(0), true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), nemo.calls.Load())
	n.ForgetNemo(second)
	_, err = n.Goto(context.Background(), intPtr(0), true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), nemo.calls.Load())

	// Nemo decisions do not place the toponym
	require.NoError(t, n.Decide(context.Background(), second, first, true))
	toponym, err := f.DB.GetToponym(second, nil)
	require.NoError(t, err)
	assert.False(t, toponym.Placed())
	assert.True(t, strings.HasPrefix(toponym.Comment, "Disambiguated to "))
	edges, err := f.DB.Edges(models.NemoTable, second, nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].Accepted())
}

func TestNextNemo(t *testing.T) {
	f := testutil.NewFixture(t)
	n := newNavigator(t, f, nil)
	_, ok, err := n.NextNemo(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	f.Source("survey1", 1850)
	f.Toponym("survey1", "Bod", "")
	last := f.Toponym("survey1", "Cod", "")
	entry, ok, err := n.NextNemo(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, last, entry.ID)
	assert.Equal(t, "Cod", entry.Name)
}
