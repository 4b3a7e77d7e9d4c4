// Copyright 2024 Blink Labs Software
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
	"cmp"
	"slices"
	"strings"

	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/normalize"
	"gorm.io/gorm/clause"
)

// likeEscaper escapes the LIKE wildcards in a token. Patterns built with it
// need ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// MatchQueue returns the unplaced toponyms without an accepted suggestion,
// optionally for one source, ordered by id
func (d *Database) MatchQueue(source string, txn *Txn) ([]models.Toponym, error) {
	query := d.handle(txn).
		Where("position_fk IS NULL").
		Where(
			`toponym_id NOT IN (SELECT added_toponym_fk FROM suggestion
			WHERE outcome = TRUE)`,
		).
		Order("toponym_id")
	if source != "" {
		query = query.Where("source_fk = ?", source)
	}
	var ret []models.Toponym
	if err := query.Find(&ret).Error; err != nil {
		return nil, d.storeError("load match queue", err, "source", source)
	}
	return ret, nil
}

// TokenCandidates returns toponyms other than exclude that share at least one
// token with tokens, in either signature. With placed set only toponyms at a
// real position are returned, otherwise only unplaced ones. When there are
// more than limit, the ones sharing the most tokens are kept. The result is
// ordered by id.
func (d *Database) TokenCandidates(
	tokens []string,
	exclude uint,
	placed bool,
	limit int,
	txn *Txn,
) ([]models.Toponym, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, 2*len(tokens))
	for _, token := range tokens {
		pattern := "%" + likeEscaper.Replace(
			normalize.TokenDelimiter+token+normalize.TokenDelimiter,
		) + "%"
		conds = append(
			conds,
			`(tokens LIKE ? ESCAPE '\' OR asciitokens LIKE ? ESCAPE '\')`,
		)
		args = append(args, pattern, pattern)
	}
	query := d.handle(txn).
		Where("toponym_id <> ?", exclude).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{
				SQL:                "(" + strings.Join(conds, " + ") + ") DESC, toponym_id",
				Vars:               args,
				WithoutParentheses: true,
			},
		})
	if placed {
		query = query.Where(
			"position_fk IS NOT NULL AND position_fk <> ?",
			models.ForeignPositionID,
		)
	} else {
		query = query.Where("position_fk IS NULL")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ret []models.Toponym
	if err := query.Find(&ret).Error; err != nil {
		return nil, d.storeError("load token candidates", err, "toponym_id", exclude)
	}
	slices.SortFunc(ret, func(a, b models.Toponym) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return ret, nil
}
