// Copyright 2026 Blink Labs Software
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

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/normalize"
	"github.com/stretchr/testify/require"
)

// NewDatabase opens a file-backed database in a temporary directory. It is
// closed when the test finishes.
func NewDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{
		Path:       filepath.Join(t.TempDir(), "toponym.sqlite"),
		Normalizer: normalize.New(normalize.Config{Languages: []string{"en"}}),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// Fixture builds store rows for tests, failing the test on any error
type Fixture struct {
	t  *testing.T
	DB *database.Database
}

// NewFixture returns a Fixture over a fresh database
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{t: t, DB: NewDatabase(t)}
}

// Source adds a source
func (f *Fixture) Source(name string, year int) {
	f.t.Helper()
	_, err := f.DB.AddSource(name, "", year, nil)
	require.NoError(f.t, err)
}

// Position adds a position with a parent region id
func (f *Fixture) Position(id string, source string, lat float64, lng float64, parent string) {
	f.t.Helper()
	require.NoError(f.t, f.DB.AddPosition(&models.Position{
		ID:         id,
		SourceName: source,
		Latitude:   lat,
		Longitude:  lng,
		ParentID:   parent,
	}, nil))
}

// Toponym adds a toponym and returns its id. An empty positionID leaves it
// unplaced.
func (f *Fixture) Toponym(source string, name string, positionID string) uint {
	f.t.Helper()
	sig := f.DB.Normalizer().Normalize(name)
	row := models.Toponym{
		SourceName:  source,
		Name:        name,
		ASCIIName:   sig.ASCIIName,
		Pattern:     sig.Pattern,
		Tokens:      sig.Tokens,
		ASCIITokens: sig.ASCIITokens,
	}
	if positionID != "" {
		row.PositionID = &positionID
	}
	rows := []models.Toponym{row}
	_, err := f.DB.AddKnownToponyms(rows, nil)
	require.NoError(f.t, err)
	return rows[0].ID
}

// Edge adds an edge with the given outcome
func (f *Fixture) Edge(table models.EdgeTable, added uint, stable uint, outcome *bool) {
	f.t.Helper()
	count, err := f.DB.AddEdges(table, []models.Edge{{
		AddedToponymID:  added,
		StableToponymID: stable,
		Outcome:         outcome,
		Comment:         "fixture",
	}}, nil)
	require.NoError(f.t, err)
	require.Equal(f.t, 1, count)
}
