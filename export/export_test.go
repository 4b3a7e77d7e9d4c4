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

package export_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/blinklabs-io/toponym/cluster"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/export"
	"github.com/blinklabs-io/toponym/internal/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFormatCell(t *testing.T) {
	testDefs := []struct {
		cell any
		want string
	}{
		{cell: 12, want: "12"},
		{cell: int64(-3), want: "-3"},
		{cell: 60.5, want: "60.5"},
		{cell: "1901", want: "1901"},
		{cell: "  Bergen ", want: `"Bergen"`},
		{cell: "line one\nline two", want: `"line one_line two"`},
		{cell: "1901,1950", want: `"1901,1950"`},
		{cell: nil, want: `""`},
		{cell: true, want: `"true"`},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.want, export.FormatCell(testDef.cell))
	}
}

func TestTSV(t *testing.T) {
	table := export.Table{
		Header: []string{"Name", "Latitude"},
		Rows: [][]any{
			{"Oslo", 59.91},
			{"Tromsø\n", 69.65},
		},
	}
	assert.Equal(t,
		"\"Name\"\t\"Latitude\"\n\"Oslo\"\t59.91\n\"Tromsø\"\t69.65",
		table.TSV(),
	)
	assert.False(t, table.Empty())
	assert.True(t, export.Table{Header: []string{"x"}}.Empty())
}

func TestWriteXLSX(t *testing.T) {
	table := export.Table{
		Header: []string{"Name", "Count"},
		Rows:   [][]any{{"Oslo", 3}, {"Bergen", 5}},
	}
	var buf bytes.Buffer
	require.NoError(t, table.WriteXLSX(&buf, "clusters"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("clusters")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "Count"},
		{"Oslo", "3"},
		{"Bergen", "5"},
	}, rows)
}

func TestSelection(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("almanac1", 1901)
	f.Position("p1", "geonno", 60, 10, "")
	f.Toponym("geonno", "Seed", "p1")
	f.Toponym("almanac1", "Added", "p1")
	e, err := export.New(f.DB)
	require.NoError(t, err)

	table, err := e.Selection(context.Background(), database.SelectionFilter{Source: "almanac1"})
	require.NoError(t, err)
	assert.Equal(t, export.SelectionHeader, table.Header)
	require.Len(t, table.Rows, 1)
	lines := strings.Split(table.TSV(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "\"Seed\"\t\"Added\"\t\"almanac1\"\t\"p1\"\t10\t60\t1901\t"))

	table, err = e.SelectionByYear(context.Background(), database.YearFilter{Year: 1901})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "1901", table.Rows[0][2])

	_, err = e.Selection(context.Background(), database.SelectionFilter{Source: "geonno"})
	require.ErrorIs(t, err, database.ErrInvalidSource)
}

func TestClusterTable(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Source("geonno", 2024)
	f.Source("almanac1", 1901)
	f.Position("p1", "geonno", 0, 0, "")
	f.Position("p2", "geonno", 0, 0.9, "")
	f.Toponym("almanac1", "A", "p1")
	f.Toponym("almanac1", "B", "p2")
	engine, err := cluster.New(cluster.Config{Database: f.DB})
	require.NoError(t, err)
	result, err := engine.Cluster(context.Background(), []string{"almanac1"}, 100)
	require.NoError(t, err)

	table := export.ClusterTable(result)
	assert.Equal(t, "\"sources\"\t\"Latitude\"\t\"Longitude\"\t\"cnt_points\"\t\"cnt_sources\"\t\"cnt_almanac1\"\n1901\t0\t0.45\t2\t2\t2", table.TSV())
}
