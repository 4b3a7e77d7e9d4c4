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

package models

import (
	"errors"
	"time"
)

var ErrToponymNotFound = errors.New("toponym not found")

// Toponym is a recorded instance of a place name from some source
type Toponym struct {
	CreatedAt   time.Time `gorm:"column:toponym_created_date"`
	UpdatedAt   time.Time `gorm:"column:toponym_edited;index"`
	PositionID  *string   `gorm:"column:position_fk;index"`
	SourceName  string    `gorm:"column:source_fk;size:10;not null;index"`
	Name        string    `gorm:"not null;index"`
	ASCIIName   string    `gorm:"column:asciiname;not null"`
	Pattern     string
	Tokens      string `gorm:"index"`
	ASCIITokens string `gorm:"column:asciitokens;index"`
	Language    string
	Comment     string
	ID          uint `gorm:"column:toponym_id;primaryKey"`
}

func (Toponym) TableName() string {
	return "toponym"
}

// Placed reports whether the toponym is linked to a position
func (t *Toponym) Placed() bool {
	return t.PositionID != nil
}
