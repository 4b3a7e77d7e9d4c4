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
)

// EnqueueWiki adds WikiData lookups to the queue
func (d *Database) EnqueueWiki(rows []models.WikiQueue, txn *Txn) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := d.handle(txn).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return 0, d.storeError("enqueue wiki rows", err, "count", len(rows))
	}
	return len(rows), nil
}

// PendingWiki returns up to limit unprocessed queue rows with a known item id,
// picked at random and returned ordered by item id
func (d *Database) PendingWiki(limit int, txn *Txn) ([]models.WikiQueue, error) {
	var ret []models.WikiQueue
	err := d.handle(txn).Raw(
		`SELECT * FROM (
			SELECT * FROM wiki_queue
			WHERE processed = FALSE AND wiki_id IS NOT NULL
			ORDER BY random() LIMIT ?
		) ORDER BY wiki_id, id`,
		limit,
	).Scan(&ret).Error
	if err != nil {
		return nil, d.storeError("load wiki queue", err, "limit", limit)
	}
	return ret, nil
}

// MarkWikiProcessed flags every queue row of an item as done
func (d *Database) MarkWikiProcessed(wikiID string, txn *Txn) error {
	err := d.handle(txn).
		Model(&models.WikiQueue{}).
		Where("wiki_id = ?", wikiID).
		Update("processed", true).Error
	if err != nil {
		return d.storeError("mark wiki row processed", err, "wiki_id", wikiID)
	}
	return nil
}

// CountPendingWiki returns the number of unprocessed queue rows
func (d *Database) CountPendingWiki(txn *Txn) (int64, error) {
	var count int64
	err := d.handle(txn).
		Model(&models.WikiQueue{}).
		Where("processed = ? AND wiki_id IS NOT NULL", false).
		Count(&count).Error
	if err != nil {
		return 0, d.storeError("count wiki queue", err)
	}
	return count, nil
}
