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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/normalize"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddPosition records a position. A position whose id is already taken is
// logged and left alone.
func (d *Database) AddPosition(position *models.Position, txn *Txn) error {
	if err := d.RequireSource(txn, position.SourceName); err != nil {
		return err
	}
	if err := d.handle(txn).Create(position).Error; err != nil {
		if isIntegrityError(err) {
			d.logger.Warn(
				"duplicate position skipped",
				"position_id", position.ID,
				"source", position.SourceName,
				"latitude", position.Latitude,
				"longitude", position.Longitude,
				"parent_id", position.ParentID,
				"error", err,
			)
			if d.metrics != nil {
				d.metrics.integrityNoops.Inc()
			}
			return nil
		}
		return d.storeError("add position", err, "position_id", position.ID)
	}
	return nil
}

// AddPositions bulk inserts positions, skipping ids that are already taken
func (d *Database) AddPositions(positions []models.Position, txn *Txn) (int, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	result := d.handle(txn).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&positions, insertBatchSize)
	if result.Error != nil {
		return 0, d.storeError("add positions", result.Error, "count", len(positions))
	}
	return int(result.RowsAffected), nil
}

// GetPosition returns a single position
func (d *Database) GetPosition(id string, txn *Txn) (*models.Position, error) {
	ret := &models.Position{}
	result := d.handle(txn).Where("position_id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrPositionNotFound, id)
		}
		return nil, d.storeError("get position", result.Error, "position_id", id)
	}
	return ret, nil
}

func (d *Database) updatePosition(
	operation string,
	id string,
	updates map[string]any,
	txn *Txn,
) error {
	result := d.handle(txn).
		Model(&models.Position{}).
		Where("position_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return d.storeError(operation, result.Error, "position_id", id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrPositionNotFound, id)
	}
	return nil
}

// ChangeCoordinates moves a position
func (d *Database) ChangeCoordinates(
	id string,
	latitude float64,
	longitude float64,
	txn *Txn,
) error {
	return d.updatePosition(
		"change coordinates",
		id,
		map[string]any{"latitude": latitude, "longitude": longitude},
		txn,
	)
}

// CommentPosition puts a note in front of the position comment
func (d *Database) CommentPosition(id string, comment string, txn *Txn) error {
	return d.updatePosition(
		"comment position",
		id,
		map[string]any{"comment": noteComment(comment)},
		txn,
	)
}

// ManualPositionID returns the id of the position created by hand for a toponym
func ManualPositionID(toponymID uint) string {
	return models.ManualPositionPrefix + strconv.FormatUint(uint64(toponymID), 10)
}

// MakePositionForToponym creates a manual position at the given coordinates
// and places the toponym there. It returns the new position id.
func (d *Database) MakePositionForToponym(
	toponymID uint,
	latitude float64,
	longitude float64,
	source string,
	txn *Txn,
) (string, error) {
	positionID := ManualPositionID(toponymID)
	err := d.withTxn(txn, func(txn *Txn) error {
		if _, err := d.GetToponym(toponymID, txn); err != nil {
			return err
		}
		var count int64
		err := txn.Tx().
			Model(&models.Position{}).
			Where("position_id = ?", positionID).
			Count(&count).Error
		if err != nil {
			return d.storeError("check position", err, "position_id", positionID)
		}
		if count > 0 {
			d.logger.Error("position is already registered", "position_id", positionID)
			return fmt.Errorf("%w: %s", models.ErrPositionExists, positionID)
		}
		err = d.AddPosition(
			&models.Position{
				ID:         positionID,
				SourceName: source,
				Latitude:   latitude,
				Longitude:  longitude,
				ParentID:   "Manual",
				Comment:    "Created manually",
			},
			txn,
		)
		if err != nil {
			return err
		}
		return d.ConnectToponym(
			toponymID,
			positionID,
			fmt.Sprintf("Created position %s for toponym", positionID),
			txn,
		)
	})
	if err != nil {
		return "", err
	}
	return positionID, nil
}

// DisconnectPosition unplaces a toponym and records rejected suggestion edges
// against every toponym still at the position, so the pairing is never
// offered again. It returns the number of rejected edges written.
func (d *Database) DisconnectPosition(
	toponymID uint,
	positionID string,
	txn *Txn,
) (int, error) {
	var rejected int
	err := d.withTxn(txn, func(txn *Txn) error {
		err := txn.Tx().
			Where("added_toponym_fk = ?", toponymID).
			Where(
				"stable_toponym_fk IN (SELECT toponym_id FROM toponym WHERE position_fk = ?)",
				positionID,
			).
			Delete(&models.Suggestion{}).Error
		if err != nil {
			return d.storeError("delete position suggestions", err, "toponym_id", toponymID)
		}
		if err := d.updateToponym(
			"disconnect position",
			toponymID,
			map[string]any{"position_fk": nil},
			txn,
		); err != nil {
			return err
		}
		var stableIDs []uint
		err = txn.Tx().
			Model(&models.Toponym{}).
			Where("position_fk = ?", positionID).
			Order("toponym_id").
			Pluck("toponym_id", &stableIDs).Error
		if err != nil {
			return d.storeError("load position toponyms", err, "position_id", positionID)
		}
		edges := make([]models.Edge, 0, len(stableIDs))
		for _, stableID := range stableIDs {
			edges = append(edges, models.Edge{
				AddedToponymID:  toponymID,
				StableToponymID: stableID,
				Outcome:         models.OutcomeRejected(),
				Comment:         "disconnected: " + positionID,
			})
		}
		rejected, err = d.AddEdges(models.SuggestionTable, edges, txn)
		return err
	})
	if err != nil {
		return 0, err
	}
	return rejected, nil
}

// MergePositions replaces several positions with a new manual position at
// their mean coordinates and moves their toponyms to it. It returns the new
// position id.
func (d *Database) MergePositions(ids []string, name string, txn *Txn) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: nothing to merge", models.ErrPositionNotFound)
	}
	var newID string
	err := d.withTxn(txn, func(txn *Txn) error {
		var positions []models.Position
		err := txn.Tx().Where("position_id IN ?", ids).Find(&positions).Error
		if err != nil {
			return d.storeError("load positions", err, "position_ids", ids)
		}
		byID := make(map[string]models.Position, len(positions))
		for _, position := range positions {
			byID[position.ID] = position
		}
		var latSum, lngSum float64
		parents := make([]string, 0, len(ids))
		sources := make([]string, 0, len(ids))
		for _, id := range ids {
			position, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: %s", models.ErrPositionNotFound, id)
			}
			latSum += position.Latitude
			lngSum += position.Longitude
			parents = append(parents, position.ParentID)
			sources = append(sources, position.SourceName)
		}
		newID, err = d.freeManualID(name, txn)
		if err != nil {
			return err
		}
		err = d.AddPosition(
			&models.Position{
				ID:         newID,
				SourceName: mostCommon(sources),
				ParentID:   mostCommon(parents),
				Latitude:   latSum / float64(len(ids)),
				Longitude:  lngSum / float64(len(ids)),
				Comment: fmt.Sprintf(
					"Merged from %s - %s",
					strings.Join(ids, ", "),
					strings.Join(sources, ", "),
				),
			},
			txn,
		)
		if err != nil {
			return err
		}
		for _, id := range ids {
			err := txn.Tx().
				Model(&models.Toponym{}).
				Where("position_fk = ?", id).
				Updates(map[string]any{
					"position_fk": newID,
					"comment":     noteComment("Position merged from " + id),
				}).Error
			if err != nil {
				return d.storeError("move toponyms", err, "position_id", id)
			}
			if err := d.updatePosition(
				"mark merged position",
				id,
				map[string]any{"comment": prefixComment("Merged into " + newID + " \n")},
				txn,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if d.metrics != nil {
		d.metrics.positionsMerged.Add(float64(len(ids)))
	}
	return newID, nil
}

// freeManualID returns the first unused id of the form M_<ascii name>_<n>
func (d *Database) freeManualID(name string, txn *Txn) (string, error) {
	prefix := models.ManualPositionPrefix + normalize.ASCII(strings.TrimSpace(name)) + "_"
	var taken []string
	err := d.handle(txn).
		Model(&models.Position{}).
		Where("substr(position_id, 1, ?) = ?", len(prefix), prefix).
		Pluck("position_id", &taken).Error
	if err != nil {
		return "", d.storeError("load manual positions", err, "prefix", prefix)
	}
	used := make(map[string]struct{}, len(taken))
	for _, id := range taken {
		used[id] = struct{}{}
	}
	for n := 0; ; n++ {
		candidate := prefix + strconv.Itoa(n)
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
	}
}

// mostCommon returns the most frequent value, preferring the earliest on ties
func mostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	best := ""
	bestCount := 0
	for _, value := range values {
		counts[value]++
		if counts[value] > bestCount {
			best = value
			bestCount = counts[value]
		}
	}
	return best
}

// ErasePositions removes positions together with their seeded toponyms and
// the suggestions pointing at them. Toponyms of user sources are unplaced and
// keep a note of the removal.
func (d *Database) ErasePositions(ids []string, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			err := txn.Tx().
				Model(&models.Toponym{}).
				Where("position_fk = ?", id).
				Where("length(source_fk) > ?", models.SeededSourceNameMaxLength).
				Updates(map[string]any{
					"position_fk": nil,
					"comment":     prefixComment(fmt.Sprintf("Position: %s was removed..\n", id)),
				}).Error
			if err != nil {
				return d.storeError("unplace toponyms", err, "position_id", id)
			}
			atPosition := txn.Tx().
				Model(&models.Toponym{}).
				Select("toponym_id").
				Where("position_fk = ?", id)
			for _, table := range []models.EdgeTable{models.SuggestionTable, models.NemoTable} {
				err := txn.Tx().
					Table(string(table)).
					Where("stable_toponym_fk IN (?) OR added_toponym_fk IN (?)", atPosition, atPosition).
					Delete(&models.Edge{}).Error
				if err != nil {
					return d.storeError("delete position edges", err, "position_id", id)
				}
			}
			if err := d.deletePositionRows(id, txn); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePosition removes a position and its seeded toponyms. Toponyms of user
// sources are unplaced.
func (d *Database) DeletePosition(id string, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		err := txn.Tx().
			Model(&models.Toponym{}).
			Where("position_fk = ?", id).
			Where("length(source_fk) > ?", models.SeededSourceNameMaxLength).
			Update("position_fk", nil).Error
		if err != nil {
			return d.storeError("unplace toponyms", err, "position_id", id)
		}
		return d.deletePositionRows(id, txn)
	})
}

func (d *Database) deletePositionRows(id string, txn *Txn) error {
	err := txn.Tx().Where("position_fk = ?", id).Delete(&models.Toponym{}).Error
	if err != nil {
		return d.storeError("delete position toponyms", err, "position_id", id)
	}
	result := txn.Tx().Where("position_id = ?", id).Delete(&models.Position{})
	if result.Error != nil {
		return d.storeError("delete position", result.Error, "position_id", id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrPositionNotFound, id)
	}
	return nil
}

// CreatedPosition is a manual position with one of its toponyms
type CreatedPosition struct {
	PositionID string  `gorm:"column:position_id" json:"position_id"`
	Name       string  `gorm:"column:name" json:"name"`
	Longitude  float64 `gorm:"column:longitude" json:"longitude"`
	Latitude   float64 `gorm:"column:latitude" json:"latitude"`
	ToponymID  uint    `gorm:"column:toponym_id" json:"toponym_id"`
}

// CreatedPositions returns every manual position with a toponym placed there
func (d *Database) CreatedPositions(txn *Txn) ([]CreatedPosition, error) {
	var ret []CreatedPosition
	err := d.handle(txn).Raw(
		`SELECT min(t.toponym_id) AS toponym_id, t.name, p.position_id,
			p.longitude, p.latitude
		FROM position AS p
		JOIN toponym AS t ON p.position_id = t.position_fk
		WHERE substr(p.position_id, 1, 2) = ?
		GROUP BY p.position_id
		ORDER BY p.position_id`,
		models.ManualPositionPrefix,
	).Scan(&ret).Error
	if err != nil {
		return nil, d.storeError("load created positions", err)
	}
	return ret, nil
}

// PositionNames is a position with the names of the toponyms placed there
type PositionNames struct {
	PositionID string  `json:"position"`
	Names      string  `json:"names"`
	Source     string  `json:"source"`
	ParentID   string  `json:"parent"`
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
	Selected   bool    `json:"selected"`
}

// PositionsWithNames returns the given positions with their distinct toponym
// names joined by newlines. Positions without toponyms are left out.
func (d *Database) PositionsWithNames(ids []string, txn *Txn) ([]PositionNames, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []struct {
		PositionID string
		Name       string
		Longitude  float64
		Latitude   float64
		SourceFk   string
		ParentFk   string
	}
	err := d.handle(txn).Raw(
		`SELECT p.position_id, t.name, p.longitude, p.latitude,
			p.source_fk, p.parent_fk
		FROM position AS p
		JOIN toponym AS t ON p.position_id = t.position_fk
		WHERE p.position_id IN ?
		GROUP BY p.position_id, t.name
		ORDER BY p.position_id, t.name`,
		ids,
	).Scan(&rows).Error
	if err != nil {
		return nil, d.storeError("load positions with names", err)
	}
	var ret []PositionNames
	index := make(map[string]int)
	for _, row := range rows {
		if i, ok := index[row.PositionID]; ok {
			ret[i].Names += "\n" + row.Name
			continue
		}
		index[row.PositionID] = len(ret)
		ret = append(ret, PositionNames{
			PositionID: row.PositionID,
			Names:      row.Name,
			Longitude:  row.Longitude,
			Latitude:   row.Latitude,
			Source:     row.SourceFk,
			ParentID:   row.ParentFk,
			Selected:   true,
		})
	}
	return ret, nil
}

// PositionIDs returns the ids of every stored position
func (d *Database) PositionIDs(txn *Txn) (map[string]struct{}, error) {
	var ids []string
	err := d.handle(txn).
		Model(&models.Position{}).
		Pluck("position_id", &ids).Error
	if err != nil {
		return nil, d.storeError("load position ids", err)
	}
	ret := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		ret[id] = struct{}{}
	}
	return ret, nil
}
