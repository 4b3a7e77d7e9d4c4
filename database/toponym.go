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
	"strings"

	"github.com/blinklabs-io/toponym/database/models"
	"gorm.io/gorm"
)

const (
	// BrowsePageSize is the number of toponyms returned per browse page
	BrowsePageSize = 20

	insertBatchSize = 500
)

// RawToponym is a name as delivered by a source, before normalization
type RawToponym struct {
	PositionID *string
	Name       string
	Language   string
}

func (r RawToponym) key() string {
	pos := "\x00"
	if r.PositionID != nil {
		pos = *r.PositionID
	}
	return strings.Join([]string{r.Name, r.Language, pos}, "\x1f")
}

// AddToponyms normalizes and inserts the names of a source. Names that repeat
// within the batch, or that the source already holds with the same language
// and position, are skipped. It returns the number of inserted rows.
func (d *Database) AddToponyms(
	source string,
	raw []RawToponym,
	txn *Txn,
) (int, error) {
	if err := d.RequireSource(txn, source); err != nil {
		return 0, err
	}
	var existing []RawToponym
	err := d.handle(txn).
		Model(&models.Toponym{}).
		Select("name, language, position_fk AS position_id").
		Where("source_fk = ?", source).
		Scan(&existing).Error
	if err != nil {
		return 0, d.storeError("load source toponyms", err, "source", source)
	}
	seen := make(map[string]struct{}, len(existing)+len(raw))
	for _, tmp := range existing {
		seen[tmp.key()] = struct{}{}
	}
	rows := make([]models.Toponym, 0, len(raw))
	for _, tmp := range raw {
		tmp.Name = strings.TrimSpace(tmp.Name)
		if tmp.Name == "" {
			continue
		}
		if _, ok := seen[tmp.key()]; ok {
			continue
		}
		seen[tmp.key()] = struct{}{}
		sig := d.normalizer.Normalize(tmp.Name)
		rows = append(rows, models.Toponym{
			PositionID:  tmp.PositionID,
			SourceName:  source,
			Name:        tmp.Name,
			ASCIIName:   sig.ASCIIName,
			Pattern:     sig.Pattern,
			Tokens:      sig.Tokens,
			ASCIITokens: sig.ASCIITokens,
			Language:    tmp.Language,
		})
	}
	d.logger.Debug(
		"adding toponyms",
		"source", source,
		"received", len(raw),
		"inserting", len(rows),
	)
	return d.AddKnownToponyms(rows, txn)
}

// AddKnownToponyms inserts rows that already carry their name signatures
func (d *Database) AddKnownToponyms(rows []models.Toponym, txn *Txn) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := d.handle(txn).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return 0, d.storeError("add toponyms", err, "count", len(rows))
	}
	if d.metrics != nil {
		d.metrics.toponymsAdded.Add(float64(len(rows)))
	}
	return len(rows), nil
}

// GetToponym returns a single toponym
func (d *Database) GetToponym(id uint, txn *Txn) (*models.Toponym, error) {
	ret := &models.Toponym{}
	result := d.handle(txn).Where("toponym_id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", models.ErrToponymNotFound, id)
		}
		return nil, d.storeError("get toponym", result.Error, "toponym_id", id)
	}
	return ret, nil
}

func (d *Database) updateToponym(
	operation string,
	id uint,
	updates map[string]any,
	txn *Txn,
) error {
	result := d.handle(txn).
		Model(&models.Toponym{}).
		Where("toponym_id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return d.storeError(operation, result.Error, "toponym_id", id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", models.ErrToponymNotFound, id)
	}
	return nil
}

// CommentToponym puts a note in front of the toponym comment
func (d *Database) CommentToponym(id uint, comment string, txn *Txn) error {
	return d.updateToponym(
		"comment toponym",
		id,
		map[string]any{"comment": noteComment(comment)},
		txn,
	)
}

// RenameToponym replaces the name of a toponym and recomputes its signatures.
// Renaming to the current name does nothing.
func (d *Database) RenameToponym(id uint, name string, txn *Txn) error {
	name = strings.TrimSpace(name)
	return d.withTxn(txn, func(txn *Txn) error {
		current, err := d.GetToponym(id, txn)
		if err != nil {
			return err
		}
		if current.Name == name {
			return nil
		}
		sig := d.normalizer.Normalize(name)
		return d.updateToponym(
			"rename toponym",
			id,
			map[string]any{
				"name":        name,
				"asciiname":   sig.ASCIIName,
				"pattern":     sig.Pattern,
				"tokens":      sig.Tokens,
				"asciitokens": sig.ASCIITokens,
				"comment": prefixComment(
					"Updated manually from " + current.Name + "\n",
				),
			},
			txn,
		)
	})
}

// DeleteToponym removes a toponym and every edge touching it
func (d *Database) DeleteToponym(id uint, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		for _, table := range []models.EdgeTable{models.SuggestionTable, models.NemoTable} {
			err := txn.Tx().
				Table(string(table)).
				Where("added_toponym_fk = ? OR stable_toponym_fk = ?", id, id).
				Delete(&models.Edge{}).Error
			if err != nil {
				return d.storeError("delete toponym edges", err, "toponym_id", id)
			}
		}
		result := txn.Tx().Where("toponym_id = ?", id).Delete(&models.Toponym{})
		if result.Error != nil {
			return d.storeError("delete toponym", result.Error, "toponym_id", id)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", models.ErrToponymNotFound, id)
		}
		return nil
	})
}

// ConnectToponym places a toponym at a position and records why
func (d *Database) ConnectToponym(
	id uint,
	positionID string,
	comment string,
	txn *Txn,
) error {
	return d.updateToponym(
		"connect toponym",
		id,
		map[string]any{
			"position_fk": positionID,
			"comment":     noteComment(comment),
		},
		txn,
	)
}

// MarkDisambiguated records that a toponym was disambiguated to option. With
// place set the toponym also takes the position of option.
func (d *Database) MarkDisambiguated(
	id uint,
	option uint,
	place bool,
	txn *Txn,
) error {
	updates := map[string]any{
		"comment": prefixComment(fmt.Sprintf("Disambiguated to %d\n", option)),
	}
	if place {
		updates["position_fk"] = gorm.Expr(
			"(SELECT position_fk FROM toponym WHERE toponym_id = ?)",
			option,
		)
	}
	return d.updateToponym("disambiguate toponym", id, updates, txn)
}

// DeclareForeign places a toponym at the sentinel position so it leaves every
// review queue
func (d *Database) DeclareForeign(id uint, txn *Txn) error {
	return d.updateToponym(
		"declare foreign",
		id,
		map[string]any{
			"position_fk": models.ForeignPositionID,
			"comment":     prefixComment("Declared irrelevant "),
		},
		txn,
	)
}

// ToponymDetail is a toponym joined with its position, if any
type ToponymDetail struct {
	PositionID      *string  `gorm:"column:position_id" json:"p_id"`
	Latitude        *float64 `gorm:"column:latitude" json:"lat"`
	Longitude       *float64 `gorm:"column:longitude" json:"lng"`
	PositionComment *string  `gorm:"column:position_comment" json:"p_comment"`
	PositionSource  *string  `gorm:"column:position_source" json:"p_source"`
	Name            string   `gorm:"column:name" json:"name"`
	Source          string   `gorm:"column:source_fk" json:"source"`
	Comment         string   `gorm:"column:comment" json:"comment"`
	ID              uint     `gorm:"column:toponym_id" json:"id"`
}

// ToponymData returns the details of the given toponyms in the order of ids.
// Unknown ids are skipped.
func (d *Database) ToponymData(ids []uint, txn *Txn) ([]ToponymDetail, error) {
	ret := make([]ToponymDetail, 0, len(ids))
	for _, id := range ids {
		var rows []ToponymDetail
		err := d.handle(txn).Raw(
			`SELECT t.toponym_id, t.name, t.source_fk, p.position_id,
				p.latitude, p.longitude, t.comment,
				p.comment AS position_comment, p.source_fk AS position_source
			FROM toponym AS t
			LEFT JOIN position AS p ON p.position_id = t.position_fk
			WHERE t.toponym_id = ?`,
			id,
		).Scan(&rows).Error
		if err != nil {
			return nil, d.storeError("load toponym data", err, "toponym_id", id)
		}
		ret = append(ret, rows...)
	}
	return ret, nil
}

// ToponymFilter narrows BrowseToponyms. Zero values do not filter.
type ToponymFilter struct {
	// Source limits the result to one source. All user sources when empty.
	Source string
	// Name is a LIKE pattern matched against the ASCII name
	Name string
	// PositionID and PositionSource are substring matches
	PositionID     string
	PositionSource string
	ToponymID      uint
	// Page is 1-based
	Page int
}

// BrowseToponyms returns one page of toponyms matching filter. Results are
// ordered by name when filtering on a name and by last edit otherwise.
func (d *Database) BrowseToponyms(filter ToponymFilter, txn *Txn) ([]models.Toponym, error) {
	query := d.handle(txn).
		Table("toponym AS t").
		Select("t.*").
		Joins("LEFT JOIN position AS p ON p.position_id = t.position_fk")
	if filter.Source == "" {
		query = query.Where("length(t.source_fk) > ?", models.SeededSourceNameMaxLength)
	} else {
		query = query.Where("t.source_fk = ?", filter.Source)
	}
	if filter.Name != "" {
		query = query.Where("t.asciiname LIKE ?", filter.Name).Order("t.name")
	} else {
		query = query.Order("t.toponym_edited DESC")
	}
	if filter.ToponymID != 0 {
		query = query.Where("t.toponym_id = ?", filter.ToponymID)
	}
	if filter.PositionID != "" {
		query = query.Where("t.position_fk LIKE ?", "%"+filter.PositionID+"%")
	}
	if filter.PositionSource != "" {
		query = query.Where("p.source_fk LIKE ?", "%"+filter.PositionSource+"%")
	}
	page := max(filter.Page, 1)
	var ret []models.Toponym
	err := query.
		Order("t.toponym_id").
		Offset((page - 1) * BrowsePageSize).
		Limit(BrowsePageSize).
		Scan(&ret).Error
	if err != nil {
		return nil, d.storeError("browse toponyms", err)
	}
	return ret, nil
}

// PositionToponyms lists the toponyms placed at a position as
// "- id : name : source" lines
func (d *Database) PositionToponyms(positionID string, txn *Txn) (string, error) {
	var rows []models.Toponym
	err := d.handle(txn).
		Where("position_fk = ?", positionID).
		Order("toponym_id").
		Find(&rows).Error
	if err != nil {
		return "", d.storeError("load position toponyms", err, "position_id", positionID)
	}
	if len(rows) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(
			lines,
			fmt.Sprintf("%d : %s : %s", row.ID, row.Name, row.SourceName),
		)
	}
	return "- " + strings.Join(lines, "\n- "), nil
}

// UnplacedToponyms returns toponyms without a position, optionally for one
// source, ordered by source and name
func (d *Database) UnplacedToponyms(source string, txn *Txn) ([]models.Toponym, error) {
	query := d.handle(txn).
		Where("position_fk IS NULL").
		Order("source_fk, name, toponym_id")
	if source != "" {
		query = query.Where("source_fk = ?", source)
	}
	var ret []models.Toponym
	if err := query.Find(&ret).Error; err != nil {
		return nil, d.storeError("load unplaced toponyms", err, "source", source)
	}
	return ret, nil
}

// OrphanToponyms returns unplaced toponyms that have no unresolved or
// accepted suggestion edge
func (d *Database) OrphanToponyms(txn *Txn) ([]models.Toponym, error) {
	var ret []models.Toponym
	err := d.handle(txn).
		Where("position_fk IS NULL").
		Where(
			`toponym_id NOT IN (SELECT added_toponym_fk FROM suggestion
			WHERE outcome IS NULL OR outcome = TRUE)`,
		).
		Order("source_fk, name, toponym_id").
		Find(&ret).Error
	if err != nil {
		return nil, d.storeError("load orphan toponyms", err)
	}
	return ret, nil
}
