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

package export

import (
	"context"
	"errors"

	"github.com/blinklabs-io/toponym/cluster"
	"github.com/blinklabs-io/toponym/database"
)

var ErrNoDatabase = errors.New("export: no database configured")

// SelectionHeader heads both selection exports
var SelectionHeader = []string{
	"Toponym_first_used",
	"Toponym_added",
	"Source",
	"PositionID",
	"Longitude",
	"Latitude",
	"Year",
	"Toponym_edited",
	"Comment",
}

// Exporter builds export tables from the store
type Exporter struct {
	db *database.Database
}

func New(db *database.Database) (*Exporter, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	return &Exporter{db: db}, nil
}

// Selection exports the positions named by the sources of filter
func (e *Exporter) Selection(ctx context.Context, filter database.SelectionFilter) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	rows, err := e.db.Selection(filter, nil)
	if err != nil {
		return Table{}, err
	}
	return selectionTable(rows), nil
}

// SelectionByYear exports the positions named by sources of the years of filter
func (e *Exporter) SelectionByYear(ctx context.Context, filter database.YearFilter) (Table, error) {
	if err := ctx.Err(); err != nil {
		return Table{}, err
	}
	rows, err := e.db.SelectionByYear(filter, nil)
	if err != nil {
		return Table{}, err
	}
	return selectionTable(rows), nil
}

func selectionTable(rows []database.SelectionRow) Table {
	t := Table{Header: SelectionHeader, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.FirstName,
			r.Name,
			r.Source,
			r.PositionID,
			r.Longitude,
			r.Latitude,
			r.Year,
			r.Edited,
			r.Comment,
		})
	}
	return t
}

// ClusterTable is the per-cluster summary of a clustering run
func ClusterTable(result *cluster.Result) Table {
	t := Table{Header: result.Header(), Rows: make([][]any, 0, len(result.Summary))}
	for _, s := range result.Summary {
		row := []any{s.Years, s.Latitude, s.Longitude, s.Points, s.Toponyms}
		for _, count := range s.PerSource {
			row = append(row, count)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
