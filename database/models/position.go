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
	"strings"
	"time"
)

const (
	// ForeignPositionID is the sentinel position for toponyms declared
	// foreign or intentionally left unplaced
	ForeignPositionID = "0"
	// ManualPositionPrefix marks positions created by hand
	ManualPositionPrefix = "M_"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionExists   = errors.New("position already exists")
)

// Position is a canonical geographic coordinate a toponym may be linked to
type Position struct {
	CreatedAt  time.Time `gorm:"column:position_created"`
	UpdatedAt  time.Time `gorm:"column:position_edited"`
	ID         string    `gorm:"column:position_id;primaryKey"`
	SourceName string    `gorm:"column:source_fk;not null"`
	ParentID   string    `gorm:"column:parent_fk;index"`
	Comment    string
	Latitude   float64 `gorm:"not null;index"`
	Longitude  float64 `gorm:"not null"`
}

func (Position) TableName() string {
	return "position"
}

func (p *Position) IsManual() bool {
	return strings.HasPrefix(p.ID, ManualPositionPrefix)
}

func (p *Position) IsForeign() bool {
	return p.ID == ForeignPositionID
}

// ParentRegion is an administrative region a position belongs to
type ParentRegion struct {
	ID   string `gorm:"column:parent_id;primaryKey"`
	Name string
}

func (ParentRegion) TableName() string {
	return "parent_region"
}
