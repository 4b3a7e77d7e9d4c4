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
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentSeparator follows every note written by the comment helpers
const CommentSeparator = " \n "

// prefixComment builds an expression that puts prefix in front of the
// existing comment column. A NULL comment is treated as empty.
func prefixComment(prefix string) clause.Expr {
	return gorm.Expr("? || COALESCE(comment, '')", prefix)
}

// noteComment is prefixComment for a free-text note followed by the separator
func noteComment(note string) clause.Expr {
	return prefixComment(strings.TrimSpace(note) + CommentSeparator)
}
