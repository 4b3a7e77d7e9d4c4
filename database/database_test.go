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
	"errors"
	"testing"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestInMemoryDatabase(t *testing.T) {
	db, err := database.New(nil)
	require.NoError(t, err)
	defer db.Close()
	assert.Empty(t, db.Path())
	_, err = db.AddSource("library", "", 1990, nil)
	require.NoError(t, err)
	// A transaction must not deadlock the single in-memory connection
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CommentSource("library", "checked", txn)
	})
	require.NoError(t, err)
}

func TestAddSource(t *testing.T) {
	db := testutil.NewDatabase(t)
	source, err := db.AddSource(" ParishBook ", "scanned", 1887, nil)
	require.NoError(t, err)
	assert.Equal(t, "parishbook", source.Name)
	assert.True(t, source.IsUserSource())

	_, err = db.AddSource("parishbook", "", 1887, nil)
	require.ErrorIs(t, err, database.ErrSourceExists)

	_, err = db.AddSource("waytoolongname", "", 1887, nil)
	require.ErrorIs(t, err, database.ErrInvalidSource)
	_, err = db.AddSource("short", "", 87, nil)
	require.ErrorIs(t, err, database.ErrInvalidSource)

	var srcErr *database.SourceError
	_, err = db.AddSource("", "", 1887, nil)
	require.True(t, errors.As(err, &srcErr))

	require.NoError(t, db.CommentSource("parishbook", "second pass", nil))
	got, err := db.GetSource("parishbook", nil)
	require.NoError(t, err)
	assert.Equal(t, "second pass"+database.CommentSeparator+"scanned", got.Comment)

	require.ErrorIs(t, db.CommentSource("missing", "x", nil), database.ErrSourceNotFound)
	require.ErrorIs(t, db.RequireSource(nil, "parishbook", "missing"), database.ErrSourceNotFound)
}

func TestListSources(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("parishbook", 1887)
	f.Source("almanac1", 1901)
	all, err := f.DB.ListSources(false, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	user, err := f.DB.ListSources(true, nil)
	require.NoError(t, err)
	require.Len(t, user, 2)
	assert.Equal(t, "almanac1", user[0].Name)
	assert.Equal(t, "parishbook", user[1].Name)
}

func TestAddToponymsDedupe(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("parishbook", 1887)
	count, err := f.DB.AddToponyms("parishbook", []database.RawToponym{
		{Name: " North Lake ", Language: "en"},
		{Name: "North Lake", Language: "en"},
		{Name: "North Lake", Language: "no"},
		{Name: "   "},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Names already held by the source are skipped
	count, err = f.DB.AddToponyms("parishbook", []database.RawToponym{
		{Name: "North Lake", Language: "en"},
		{Name: "Lake North", Language: "en"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unplaced, err := f.DB.UnplacedToponyms("parishbook", nil)
	require.NoError(t, err)
	require.Len(t, unplaced, 3)
	assert.Equal(t, unplaced[0].Tokens, unplaced[1].Tokens)
	assert.Equal(t, ",lake, ,north,", unplaced[2].Tokens)

	_, err = f.DB.AddToponyms("missing", []database.RawToponym{{Name: "x"}}, nil)
	require.ErrorIs(t, err, database.ErrSourceNotFound)
}

func TestRenameToponym(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("parishbook", 1887)
	id := f.Toponym("parishbook", "Tromso", "")
	require.NoError(t, f.DB.RenameToponym(id, "Tromsø", nil))
	toponym, err := f.DB.GetToponym(id, nil)
	require.NoError(t, err)
	assert.Equal(t, "Tromsø", toponym.Name)
	assert.Equal(t, "Tromso", toponym.ASCIIName)
	assert.Equal(t, "Troms_", toponym.Pattern)
	assert.Equal(t, ",tromsø,", toponym.Tokens)
	assert.Equal(t, "Updated manually from Tromso\n", toponym.Comment)

	// Same name is a no-op
	require.NoError(t, f.DB.RenameToponym(id, "Tromsø", nil))
	toponym, err = f.DB.GetToponym(id, nil)
	require.NoError(t, err)
	assert.Equal(t, "Updated manually from Tromso\n", toponym.Comment)

	require.ErrorIs(t, f.DB.RenameToponym(999, "x", nil), models.ErrToponymNotFound)
}

func TestDeclareForeignAndConnect(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("parishbook", 1887)
	f.Source("geonno", 2024)
	f.Position("p1", "geonno", 60, 10, "")
	a := f.Toponym("parishbook", "Oslo", "")
	b := f.Toponym("parishbook", "Paris", "")

	require.NoError(t, f.DB.ConnectToponym(a, "p1", "by hand", nil))
	require.NoError(t, f.DB.DeclareForeign(b, nil))

	ta, err := f.DB.GetToponym(a, nil)
	require.NoError(t, err)
	require.NotNil(t, ta.PositionID)
	assert.Equal(t, "p1", *ta.PositionID)
	assert.Equal(t, "by hand"+database.CommentSeparator, ta.Comment)

	tb, err := f.DB.GetToponym(b, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ForeignPositionID, *tb.PositionID)
	assert.Equal(t, "Declared irrelevant ", tb.Comment)

	lines, err := f.DB.PositionToponyms("p1", nil)
	require.NoError(t, err)
	assert.Equal(t, "- 1 : Oslo : parishbook", lines)

	details, err := f.DB.ToponymData([]uint{a, 999, b}, nil)
	require.NoError(t, err)
	require.Len(t, details, 2)
	require.NotNil(t, details[0].Latitude)
	assert.InDelta(t, 60, *details[0].Latitude, 1e-9)
	assert.Nil(t, details[1].Latitude)
}

func TestAddPositionIntegrityNoop(t *testing.T) {
	registry := prometheus.NewRegistry()
	db, err := database.New(&database.Config{
		Path:         t.TempDir() + "/toponym.sqlite",
		PromRegistry: registry,
	})
	require.NoError(t, err)
	defer db.Close()
	_, err = db.AddSource("geonno", "", 2024, nil)
	require.NoError(t, err)
	pos := &models.Position{ID: "1", SourceName: "geonno", Latitude: 1, Longitude: 2}
	require.NoError(t, db.AddPosition(pos, nil))
	dup := &models.Position{ID: "1", SourceName: "geonno", Latitude: 5, Longitude: 6}
	require.NoError(t, db.AddPosition(dup, nil))
	got, err := db.GetPosition("1", nil)
	require.NoError(t, err)
	assert.InDelta(t, 1, got.Latitude, 1e-9)

	require.ErrorIs(
		t,
		db.AddPosition(&models.Position{ID: "2", SourceName: "missing"}, nil),
		database.ErrSourceNotFound,
	)
	_, err = db.GetPosition("2", nil)
	require.ErrorIs(t, err, models.ErrPositionNotFound)
	assert.Equal(t, 1.0, testutil.CounterValue(t, registry, "toponym_store_integrity_noops_total"))
}

