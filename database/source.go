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
	"strings"
	"unicode/utf8"

	"github.com/blinklabs-io/toponym/database/models"
	"gorm.io/gorm"
)

// AddSource records a new source. The name is lower-cased.
func (d *Database) AddSource(
	name string,
	comment string,
	year int,
	txn *Txn,
) (*models.Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	nameLen := utf8.RuneCountInString(name)
	if nameLen == 0 || nameLen > models.SourceNameMaxLength {
		return nil, &SourceError{Err: ErrInvalidSource, Name: name}
	}
	if year < 1000 || year > 9999 {
		return nil, &SourceError{Err: ErrInvalidSource, Name: name}
	}
	source := &models.Source{
		Name:    name,
		Comment: comment,
		Year:    year,
	}
	if err := d.handle(txn).Create(source).Error; err != nil {
		if isIntegrityError(err) {
			return nil, &SourceError{Err: ErrSourceExists, Name: name}
		}
		return nil, d.storeError("add source", err, "source", name)
	}
	return source, nil
}

// CommentSource puts a note in front of the source comment
func (d *Database) CommentSource(name string, comment string, txn *Txn) error {
	result := d.handle(txn).
		Model(&models.Source{}).
		Where("name = ?", name).
		Update("comment", noteComment(comment))
	if result.Error != nil {
		return d.storeError("comment source", result.Error, "source", name)
	}
	if result.RowsAffected == 0 {
		return &SourceError{Err: ErrSourceNotFound, Name: name}
	}
	return nil
}

// GetSource returns a single source
func (d *Database) GetSource(name string, txn *Txn) (*models.Source, error) {
	ret := &models.Source{}
	result := d.handle(txn).Where("name = ?", name).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, &SourceError{Err: ErrSourceNotFound, Name: name}
		}
		return nil, d.storeError("get source", result.Error, "source", name)
	}
	return ret, nil
}

// ListSources returns the known sources ordered by name. With userOnly set,
// the seeded reference sources are left out.
func (d *Database) ListSources(userOnly bool, txn *Txn) ([]models.Source, error) {
	var ret []models.Source
	query := d.handle(txn).Order("name")
	if userOnly {
		query = query.Where("length(name) > ?", models.SeededSourceNameMaxLength)
	}
	if err := query.Find(&ret).Error; err != nil {
		return nil, d.storeError("list sources", err)
	}
	return ret, nil
}

// RequireSource returns an error wrapping ErrSourceNotFound unless every
// named source exists
func (d *Database) RequireSource(txn *Txn, names ...string) error {
	for _, name := range names {
		var count int64
		err := d.handle(txn).
			Model(&models.Source{}).
			Where("name = ?", name).
			Count(&count).Error
		if err != nil {
			return d.storeError("check source", err, "source", name)
		}
		if count == 0 {
			return &SourceError{Err: ErrSourceNotFound, Name: name}
		}
	}
	return nil
}
