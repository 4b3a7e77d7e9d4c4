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

// ClusterMember is a row of the ephemeral cluster table
type ClusterMember struct {
	PositionID string  `gorm:"column:p_fk;not null"`
	Lat        float64 `gorm:"column:lat;index"`
	Lng        float64 `gorm:"column:lng"`
	ID         uint    `gorm:"primarykey"`
	ClusterNr  int     `gorm:"column:cluster_nr;index"`
}

func (ClusterMember) TableName() string {
	return "cluster"
}
