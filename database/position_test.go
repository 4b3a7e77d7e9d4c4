// Copyright 2025 Blink Labs Software
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

package database_test

import (
	"testing"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakePositionForToponym(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("parishbook", 1887)
	id := f.Toponym("parishbook", "Lost Farm", "")
	positionID, err := f.DB.MakePositionForToponym(id, 61.5, 9.25, "parishbook", nil)
	require.NoError(t, err)
	assert.Equal(t, database.ManualPositionID(id), positionID)

	position, err := f.DB.GetPosition(positionID, nil)
	require.NoError(t, err)
	assert.True(t, position.IsManual())
	assert.Equal(t, "Created manually", position.Comment)
	toponym, err := f.DB.GetToponym(id, nil)
	require.NoError(t, err)
	assert.Equal(t, positionID, *toponym.PositionID)
	assert.Contains(t, toponym.Comment, "Created position "+positionID+" for toponym")

	_, err = f.DB.MakePositionForToponym(id, 0, 0, "parishbook", nil)
	require.ErrorIs(t, err, models.ErrPositionExists)

	created, err := f.DB.CreatedPositions(nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Lost Farm", created[0].Name)
}

func TestChangeAndCommentPosition(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Position("p1", "geonno", 1, 1, "")
	require.NoError(t, f.DB.ChangeCoordinates("p1", 2, 3, nil))
	require.NoError(t, f.DB.CommentPosition("p1", "moved", nil))
	position, err := f.DB.GetPosition("p1", nil)
	require.NoError(t, err)
	assert.InDelta(t, 2, position.Latitude, 1e-9)
	assert.InDelta(t, 3, position.Longitude, 1e-9)
	assert.Equal(t, "moved"+database.CommentSeparator, position.Comment)
	require.ErrorIs(t, f.DB.ChangeCoordinates("nope", 0, 0, nil), models.ErrPositionNotFound)
}

func TestDisconnectPosition(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("parishbook", 1887)
	f.Position("p1", "geonno", 60, 10, "")
	stable1 := f.Toponym("geonno", "Lake", "p1")
	stable2 := f.Toponym("geonno", "Lakeside", "p1")
	added := f.Toponym("parishbook", "Lake", "")
	f.Edge(models.SuggestionTable, added, stable1, models.OutcomeAccepted())
	require.NoError(t, f.DB.ConnectToponym(added, "p1", "accepted", nil))

	rejected, err := f.DB.DisconnectPosition(added, "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rejected)

	toponym, err := f.DB.GetToponym(added, nil)
	require.NoError(t, err)
	assert.False(t, toponym.Placed())
	edges, err := f.DB.Edges(models.SuggestionTable, added, nil)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, edge := range edges {
		assert.True(t, edge.Rejected())
		assert.Equal(t, "disconnected: p1", edge.Comment)
	}
	assert.ElementsMatch(
		t,
		[]uint{stable1, stable2},
		[]uint{edges[0].StableToponymID, edges[1].StableToponymID},
	)
}

func TestMergePositions(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("geonse", 2024)
	f.Position("a", "geonno", 60, 10, "NO.42")
	f.Position("b", "geonno", 62, 12, "NO.42")
	f.Position("c", "geonse", 61, 11, "SE.01")
	ta := f.Toponym("geonno", "Alpha", "a")
	tc := f.Toponym("geonse", "Gamma", "c")

	newID, err := f.DB.MergePositions([]string{"a", "b", "c"}, "Trøndelag", nil)
	require.NoError(t, err)
	assert.Equal(t, "M_Trondelag_0", newID)
	merged, err := f.DB.GetPosition(newID, nil)
	require.NoError(t, err)
	assert.InDelta(t, 61, merged.Latitude, 1e-9)
	assert.InDelta(t, 11, merged.Longitude, 1e-9)
	assert.Equal(t, "geonno", merged.SourceName)
	assert.Equal(t, "NO.42", merged.ParentID)

	for _, id := range []uint{ta, tc} {
		toponym, err := f.DB.GetToponym(id, nil)
		require.NoError(t, err)
		assert.Equal(t, newID, *toponym.PositionID)
	}
	old, err := f.DB.GetPosition("a", nil)
	require.NoError(t, err)
	assert.Equal(t, "Merged into "+newID+" \n", old.Comment)

	// The next merge under the same name gets the next free number
	second, err := f.DB.MergePositions([]string{"b"}, "Trøndelag", nil)
	require.NoError(t, err)
	assert.Equal(t, "M_Trondelag_1", second)

	_, err = f.DB.MergePositions([]string{"a", "missing"}, "x", nil)
	require.ErrorIs(t, err, models.ErrPositionNotFound)
}

func TestErasePositions(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("parishbook", 1887)
	f.Position("p1", "geonno", 60, 10, "")
	seeded := f.Toponym("geonno", "Lake", "p1")
	user := f.Toponym("parishbook", "Lake", "p1")
	other := f.Toponym("parishbook", "Lake Farm", "")
	f.Edge(models.SuggestionTable, other, seeded, nil)

	require.NoError(t, f.DB.ErasePositions([]string{"p1", "p1"}, nil))

	_, err := f.DB.GetPosition("p1", nil)
	require.ErrorIs(t, err, models.ErrPositionNotFound)
	_, err = f.DB.GetToponym(seeded, nil)
	require.ErrorIs(t, err, models.ErrToponymNotFound)
	kept, err := f.DB.GetToponym(user, nil)
	require.NoError(t, err)
	assert.False(t, kept.Placed())
	assert.Equal(t, "Position: p1 was removed..\n", kept.Comment)
	edges, err := f.DB.Edges(models.SuggestionTable, other, nil)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestDeletePosition(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("parishbook", 1887)
	f.Position("p1", "geonno", 60, 10, "")
	seeded := f.Toponym("geonno", "Lake", "p1")
	user := f.Toponym("parishbook", "Lake", "p1")
	require.NoError(t, f.DB.DeletePosition("p1", nil))
	_, err := f.DB.GetToponym(seeded, nil)
	require.ErrorIs(t, err, models.ErrToponymNotFound)
	kept, err := f.DB.GetToponym(user, nil)
	require.NoError(t, err)
	assert.False(t, kept.Placed())
	require.ErrorIs(t, f.DB.DeletePosition("p1", nil), models.ErrPositionNotFound)
}

func TestPositionsWithNames(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Position("p1", "geonno", 60, 10, "NO.42")
	f.Position("p2", "geonno", 61, 11, "")
	f.Toponym("geonno", "Beta", "p1")
	f.Toponym("geonno", "Alpha", "p1")
	f.Toponym("geonno", "Alpha", "p1")
	rows, err := f.DB.PositionsWithNames([]string{"p1", "p2"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha\nBeta", rows[0].Names)
	assert.Equal(t, "NO.42", rows[0].ParentID)
	assert.True(t, rows[0].Selected)
}

func TestDeleteToponymRemovesEdges(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("parishbook", 1887)
	f.Position("p1", "geonno", 60, 10, "")
	stable := f.Toponym("geonno", "Lake", "p1")
	added := f.Toponym("parishbook", "Lake", "")
	f.Edge(models.SuggestionTable, added, stable, nil)
	f.Edge(models.NemoTable, stable, added, nil)
	require.NoError(t, f.DB.DeleteToponym(added, nil))
	for _, table := range []models.EdgeTable{models.SuggestionTable, models.NemoTable} {
		for _, id := range []uint{added, stable} {
			edges, err := f.DB.Edges(table, id, nil)
			require.NoError(t, err)
			assert.Empty(t, edges)
		}
	}
	require.ErrorIs(t, f.DB.DeleteToponym(added, nil), models.ErrToponymNotFound)
}
