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

// WikiQueue is a pending WikiData lookup for a position
type WikiQueue struct {
	WikiID     *string `gorm:"column:wiki_id;index"`
	PositionID string  `gorm:"column:position_fk;not null"`
	SourceName string  `gorm:"column:source_fk;not null"`
	Title      string
	ID         uint `gorm:"primarykey"`
	Processed  bool `gorm:"not null;default:false;index"`
}

func (WikiQueue) TableName() string {
	return "wiki_queue"
}
