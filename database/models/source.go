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

import "time"

const (
	// SourceNameMaxLength is the longest accepted source name
	SourceNameMaxLength = 10
	// SeededSourceNameMaxLength is the longest name reserved for seeded
	// reference sources. Longer names belong to user sources.
	SeededSourceNameMaxLength = 6
)

// Source describes where a batch of toponyms or positions came from
type Source struct {
	EditedAt time.Time `gorm:"column:source_date_edited"`
	Name     string    `gorm:"primaryKey;size:10"`
	Comment  string
	Year     int `gorm:"not null"`
}

func (Source) TableName() string {
	return "source"
}

// IsUserSource reports whether the source was added by a user rather than by seeding
func (s Source) IsUserSource() bool {
	return IsUserSourceName(s.Name)
}

func IsUserSourceName(name string) bool {
	return len(name) > SeededSourceNameMaxLength
}
