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
	"github.com/blinklabs-io/toponym/database/models"
	"gorm.io/gorm/clause"
)

// AddEdges inserts candidate edges into table. Pairs that already exist,
// whatever their outcome, are left untouched. It returns the number of new
// edges.
func (d *Database) AddEdges(
	table models.EdgeTable,
	edges []models.Edge,
	txn *Txn,
) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	result := d.handle(txn).
		Table(string(table)).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edges)
	if result.Error != nil {
		return 0, d.storeError("add edges", result.Error, "table", table)
	}
	return int(result.RowsAffected), nil
}

// Edges returns every edge of table added for a toponym, ordered by id
func (d *Database) Edges(
	table models.EdgeTable,
	addedID uint,
	txn *Txn,
) ([]models.Edge, error) {
	var ret []models.Edge
	err := d.handle(txn).
		Table(string(table)).
		Where("added_toponym_fk = ?", addedID).
		Order("id").
		Find(&ret).Error
	if err != nil {
		return nil, d.storeError("load edges", err, "table", table, "toponym_id", addedID)
	}
	return ret, nil
}

// SetOutcome resolves the edge (added, stable) in table. A non-empty prefix is
// put in front of the edge comment. A rejected edge is never accepted again.
// It returns the number of edges changed.
func (d *Database) SetOutcome(
	table models.EdgeTable,
	addedID uint,
	stableID uint,
	accepted bool,
	prefix string,
	txn *Txn,
) (int, error) {
	updates := map[string]any{"outcome": accepted}
	if prefix != "" {
		updates["comment"] = prefixComment(prefix)
	}
	query := d.handle(txn).
		Table(string(table)).
		Where("added_toponym_fk = ? AND stable_toponym_fk = ?", addedID, stableID)
	if accepted {
		query = query.Where("(outcome IS NULL OR outcome = TRUE)")
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return 0, d.storeError(
			"set edge outcome",
			result.Error,
			"table", table,
			"added", addedID,
			"stable", stableID,
		)
	}
	return int(result.RowsAffected), nil
}

// AcceptUnresolved accepts every unresolved edge of a toponym in table,
// putting prefix in front of each edge comment
func (d *Database) AcceptUnresolved(
	table models.EdgeTable,
	addedID uint,
	prefix string,
	txn *Txn,
) (int, error) {
	result := d.handle(txn).
		Table(string(table)).
		Where("added_toponym_fk = ? AND outcome IS NULL", addedID).
		Updates(map[string]any{
			"outcome": true,
			"comment": prefixComment(prefix),
		})
	if result.Error != nil {
		return 0, d.storeError("accept edges", result.Error, "table", table, "added", addedID)
	}
	return int(result.RowsAffected), nil
}

// MappableToponym is an unplaced toponym whose unresolved suggestions all
// point at the same position
type MappableToponym struct {
	PositionID string `gorm:"column:position_fk"`
	ToponymID  uint   `gorm:"column:added_toponym_fk"`
}

// MappableSuggestions returns the toponyms the consensus rule can place,
// optionally only target, ordered by toponym id
func (d *Database) MappableSuggestions(target *uint, txn *Txn) ([]MappableToponym, error) {
	query := `SELECT s.added_toponym_fk, max(st.position_fk) AS position_fk
		FROM suggestion AS s
		JOIN toponym AS st ON st.toponym_id = s.stable_toponym_fk
		JOIN toponym AS at ON at.toponym_id = s.added_toponym_fk
		WHERE s.outcome IS NULL
		AND at.position_fk IS NULL
		AND s.added_toponym_fk NOT IN
			(SELECT added_toponym_fk FROM suggestion WHERE outcome = TRUE)`
	var args []any
	if target != nil {
		query += " AND s.added_toponym_fk = ?"
		args = append(args, *target)
	}
	query += `
		GROUP BY s.added_toponym_fk
		HAVING count(DISTINCT st.position_fk) = 1
		ORDER BY s.added_toponym_fk`
	var ret []MappableToponym
	if err := d.handle(txn).Raw(query, args...).Scan(&ret).Error; err != nil {
		return nil, d.storeError("find mappable suggestions", err)
	}
	return ret, nil
}

// EdgeCandidate names the stable side of an edge
type EdgeCandidate struct {
	Name    string `gorm:"column:name"`
	Comment string `gorm:"column:comment"`
}

// UnresolvedCandidates returns the stable toponym names and edge comments of
// a toponym's unresolved suggestions, ordered by edge id
func (d *Database) UnresolvedCandidates(addedID uint, txn *Txn) ([]EdgeCandidate, error) {
	var ret []EdgeCandidate
	err := d.handle(txn).Raw(
		`SELECT t.name, COALESCE(s.comment, '') AS comment
		FROM suggestion AS s
		JOIN toponym AS t ON t.toponym_id = s.stable_toponym_fk
		WHERE s.added_toponym_fk = ? AND s.outcome IS NULL
		ORDER BY s.id`,
		addedID,
	).Scan(&ret).Error
	if err != nil {
		return nil, d.storeError("load candidates", err, "toponym_id", addedID)
	}
	return ret, nil
}

// SuggestionQueue returns the unplaced toponyms with at least one unresolved
// suggestion and no accepted one, ordered by source and name
func (d *Database) SuggestionQueue(txn *Txn) ([]uint, error) {
	var ret []uint
	err := d.handle(txn).Raw(
		`SELECT s.added_toponym_fk
		FROM suggestion AS s
		JOIN toponym AS t ON t.toponym_id = s.added_toponym_fk
		WHERE s.outcome IS NULL
		AND t.position_fk IS NULL
		AND s.added_toponym_fk NOT IN
			(SELECT added_toponym_fk FROM suggestion WHERE outcome = TRUE)
		GROUP BY s.added_toponym_fk
		ORDER BY t.source_fk, t.name, s.added_toponym_fk`,
	).Scan(&ret).Error
	if err != nil {
		return nil, d.storeError("load suggestion queue", err)
	}
	return ret, nil
}

// NemoQueue returns every unplaced toponym, ordered by source and name
func (d *Database) NemoQueue(txn *Txn) ([]uint, error) {
	var ret []uint
	err := d.handle(txn).
		Model(&models.Toponym{}).
		Where("position_fk IS NULL").
		Order("source_fk, name, toponym_id").
		Pluck("toponym_id", &ret).Error
	if err != nil {
		return nil, d.storeError("load nemo queue", err)
	}
	return ret, nil
}

// AltNameSeparator joins the names of the toponyms at a candidate position
const AltNameSeparator = " \n"

// DisambiguationRow is an unresolved edge joined with the candidate position
type DisambiguationRow struct {
	PositionID        *string  `gorm:"column:position_id"`
	PositionComment   *string  `gorm:"column:position_comment"`
	AltNames          *string  `gorm:"column:alt_names"`
	ParentName        *string  `gorm:"column:parent_name"`
	Latitude          *float64 `gorm:"column:latitude"`
	Longitude         *float64 `gorm:"column:longitude"`
	NewName           string   `gorm:"column:new_name"`
	SourceID          string   `gorm:"column:source_id"`
	OldName           string   `gorm:"column:old_name"`
	SuggestionComment string   `gorm:"column:suggestion_comment"`
	AddedToponymID    uint     `gorm:"column:added_toponym_id"`
	OldToponymID      uint     `gorm:"column:old_toponym_id"`
}

// DisambiguationRows returns the unresolved edges of target in table with
// the candidate position, its comment, the names of every toponym at it and
// its parent region, ordered by position comment then parent region name
func (d *Database) DisambiguationRows(
	table models.EdgeTable,
	target uint,
	txn *Txn,
) ([]DisambiguationRow, error) {
	var ret []DisambiguationRow
	err := d.handle(txn).Raw(
		`SELECT e.added_toponym_fk AS added_toponym_id,
			nt.name AS new_name,
			nt.source_fk AS source_id,
			e.stable_toponym_fk AS old_toponym_id,
			ot.name AS old_name,
			COALESCE(e.comment, '') AS suggestion_comment,
			p.position_id,
			p.comment AS position_comment,
			(SELECT group_concat(name, @separator) FROM toponym
				WHERE position_fk = p.position_id) AS alt_names,
			(SELECT name FROM parent_region
				WHERE parent_id = p.parent_fk) AS parent_name,
			p.latitude,
			p.longitude
		FROM toponym AS nt
		JOIN `+string(table)+` AS e ON e.added_toponym_fk = nt.toponym_id
		JOIN toponym AS ot ON e.stable_toponym_fk = ot.toponym_id
		LEFT JOIN position AS p ON ot.position_fk = p.position_id
		WHERE e.outcome IS NULL AND e.added_toponym_fk = @target
		ORDER BY p.comment, parent_name, e.id`,
		map[string]any{"separator": AltNameSeparator, "target": target},
	).Scan(&ret).Error
	if err != nil {
		return nil, d.storeError("load disambiguation rows", err, "table", table, "toponym_id", target)
	}
	return ret, nil
}
