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

package database

import (
	"strconv"
	"unicode/utf8"

	"github.com/blinklabs-io/toponym/database/models"
	"gorm.io/gorm"
)

// SelectionRow is one exported position with the toponym that placed it
type SelectionRow struct {
	FirstName  string  `gorm:"column:first_name"`
	Name       string  `gorm:"column:name"`
	Source     string  `gorm:"column:source"`
	PositionID string  `gorm:"column:position_id"`
	Edited     string  `gorm:"column:edited"`
	Comment    string  `gorm:"column:comment"`
	Longitude  float64 `gorm:"column:longitude"`
	Latitude   float64 `gorm:"column:latitude"`
	Year       int     `gorm:"column:year"`
}

// SelectionFilter picks positions by source. An empty Source selects every
// user source. Source2 keeps only positions also named by that source and
// NoSource drops positions named by it.
type SelectionFilter struct {
	Source   string
	Source2  string
	NoSource string
}

// YearFilter is SelectionFilter keyed on the source year. A zero Year
// selects every user source.
type YearFilter struct {
	Year   int
	Year2  int
	NoYear int
}

func selectionQuery(db *gorm.DB, sourceColumn string) *gorm.DB {
	return db.
		Table("toponym AS t").
		Select(
			`(SELECT name FROM toponym WHERE position_fk = p.position_id
				ORDER BY toponym_id LIMIT 1) AS first_name,
			t.name, `+sourceColumn+` AS source, p.position_id,
			p.longitude, p.latitude, s.year,
			CAST(t.toponym_edited AS TEXT) AS edited, COALESCE(t.comment, '') AS comment`,
		).
		Joins("JOIN position AS p ON p.position_id = t.position_fk").
		Joins("JOIN source AS s ON s.name = t.source_fk").
		Where("COALESCE(t.comment, '') NOT LIKE ?", "%Declare%").
		Group("p.position_id").
		Order("p.position_id")
}

// Selection returns the positions named by the sources of filter
func (d *Database) Selection(filter SelectionFilter, txn *Txn) ([]SelectionRow, error) {
	for _, name := range []string{filter.Source, filter.Source2, filter.NoSource} {
		if name == "" {
			continue
		}
		if !models.IsUserSourceName(name) || utf8.RuneCountInString(name) > models.SourceNameMaxLength {
			return nil, &SourceError{Err: ErrInvalidSource, Name: name}
		}
	}
	query := selectionQuery(d.handle(txn), "t.source_fk")
	if filter.Source == "" {
		query = query.Where("length(t.source_fk) > ?", models.SeededSourceNameMaxLength)
	} else {
		query = query.Where("t.source_fk = ?", filter.Source)
		if filter.Source2 != "" {
			query = query.Where(
				"p.position_id IN (SELECT position_fk FROM toponym WHERE source_fk = ?)",
				filter.Source2,
			)
		}
	}
	if filter.NoSource != "" {
		query = query.Where(
			`t.position_fk NOT IN (SELECT position_fk FROM toponym
			WHERE source_fk = ? AND position_fk IS NOT NULL)`,
			filter.NoSource,
		)
	}
	var ret []SelectionRow
	if err := query.Scan(&ret).Error; err != nil {
		return nil, d.storeError("export selection", err)
	}
	return ret, nil
}

// SelectionByYear returns the positions named by sources of the years of
// filter
func (d *Database) SelectionByYear(filter YearFilter, txn *Txn) ([]SelectionRow, error) {
	for _, year := range []int{filter.Year, filter.Year2, filter.NoYear} {
		if year != 0 && (year < 1000 || year > 9999) {
			return nil, &SourceError{Err: ErrInvalidSource, Name: strconv.Itoa(year)}
		}
	}
	query := selectionQuery(d.handle(txn), "CAST(s.year AS TEXT)")
	if filter.Year == 0 {
		query = query.Where("length(t.source_fk) > ?", models.SeededSourceNameMaxLength)
	} else {
		query = query.Where("s.year = ?", filter.Year)
		if filter.Year2 != 0 {
			query = query.Where(
				`p.position_id IN (SELECT position_fk FROM toponym
				JOIN source ON toponym.source_fk = source.name WHERE source.year = ?)`,
				filter.Year2,
			)
		}
	}
	if filter.NoYear != 0 {
		query = query.Where(
			`t.position_fk NOT IN (SELECT position_fk FROM toponym
			JOIN source ON toponym.source_fk = source.name
			WHERE source.year = ? AND position_fk IS NOT NULL)`,
			filter.NoYear,
		)
	}
	var ret []SelectionRow
	if err := query.Scan(&ret).Error; err != nil {
		return nil, d.storeError("export selection by year", err)
	}
	return ret, nil
}
