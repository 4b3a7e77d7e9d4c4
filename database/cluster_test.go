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

func TestClusterTable(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("almanac1", 1901)
	f.Position("p1", "geonno", 0, 0, "")
	f.Position("p2", "geonno", 0, 0.5, "")
	f.Position("p3", "geonno", 5, 5, "")
	f.Toponym("almanac1", "A", "p1")
	f.Toponym("almanac1", "B", "p2")
	f.Toponym("almanac1", "C", "p3")
	declared := f.Toponym("almanac1", "D", "")
	require.NoError(t, f.DB.DeclareForeign(declared, nil))

	positions, err := f.DB.ClusterPositions([]string{"almanac1"}, nil)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.Equal(t, "p1", positions[0].ID)

	require.NoError(t, f.DB.ResetClusters(nil))
	next, err := f.DB.NextClusterNr(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
	require.NoError(t, f.DB.AddClusterMember(&models.ClusterMember{PositionID: "p1", ClusterNr: 0}, nil))
	require.NoError(t, f.DB.AddClusterMember(&models.ClusterMember{PositionID: "p3", Lat: 5, Lng: 5, ClusterNr: 1}, nil))
	next, err = f.DB.NextClusterNr(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	inBox, err := f.DB.ClusterMembersInBox(-1, 1, -1, 1, nil)
	require.NoError(t, err)
	require.Len(t, inBox, 1)
	assert.Equal(t, "p1", inBox[0].PositionID)

	require.NoError(t, f.DB.RelabelCluster(1, 0, nil))
	summary, err := f.DB.ClusterSummary([]string{"almanac1"}, nil)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "1901", summary[0].Years)
	assert.Equal(t, int64(2), summary[0].Points)
	assert.Equal(t, []int64{2}, summary[0].PerSource)

	// Reset empties the table
	require.NoError(t, f.DB.ResetClusters(nil))
	members, err := f.DB.ClusterMembers(nil)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSelection(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("almanac1", 1901)
	f.Source("almanac2", 1950)
	f.Position("p1", "geonno", 60, 10, "")
	f.Position("p2", "geonno", 61, 11, "")
	f.Toponym("geonno", "Seed One", "p1")
	f.Toponym("almanac1", "One", "p1")
	f.Toponym("almanac1", "Two", "p2")
	f.Toponym("almanac2", "Uno", "p1")

	rows, err := f.DB.Selection(database.SelectionFilter{Source: "almanac1"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Seed One", rows[0].FirstName)
	assert.Equal(t, "One", rows[0].Name)
	assert.Equal(t, 1901, rows[0].Year)

	rows, err = f.DB.Selection(database.SelectionFilter{Source: "almanac1", Source2: "almanac2"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].PositionID)

	rows, err = f.DB.Selection(database.SelectionFilter{Source: "almanac1", NoSource: "almanac2"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p2", rows[0].PositionID)

	rows, err = f.DB.Selection(database.SelectionFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = f.DB.Selection(database.SelectionFilter{Source: "geonno"}, nil)
	require.ErrorIs(t, err, database.ErrInvalidSource)

	rows, err = f.DB.SelectionByYear(database.YearFilter{Year: 1950}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1950", rows[0].Source)

	_, err = f.DB.SelectionByYear(database.YearFilter{Year: 50}, nil)
	require.ErrorIs(t, err, database.ErrInvalidSource)
}
