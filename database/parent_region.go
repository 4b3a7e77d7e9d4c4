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

	"github.com/blinklabs-io/toponym/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddParentRegions stores administrative regions, replacing the names of
// regions that already exist
func (d *Database) AddParentRegions(regions []models.ParentRegion, txn *Txn) error {
	if len(regions) == 0 {
		return nil
	}
	err := d.handle(txn).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "parent_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		CreateInBatches(&regions, insertBatchSize).Error
	if err != nil {
		return d.storeError("add parent regions", err, "count", len(regions))
	}
	return nil
}

// GetParentRegion returns a region, or nil when it is unknown
func (d *Database) GetParentRegion(id string, txn *Txn) (*models.ParentRegion, error) {
	ret := &models.ParentRegion{}
	result := d.handle(txn).Where("parent_id = ?", id).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, d.storeError("get parent region", result.Error, "parent_id", id)
	}
	return ret, nil
}
