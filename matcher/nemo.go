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

package matcher

import (
	"cmp"
	"context"
	"slices"

	"github.com/blinklabs-io/toponym/database/models"
)

const minimumNemoScore = 0.01

// Nemo groups unplaced toponyms by writing edges to their most similar
// unplaced peers. Nemo edges never place a toponym.
type Nemo struct {
	m *Matcher
	// MinScore is the lowest score kept. Any shared token is enough by default.
	MinScore float64
}

// Nemo returns the Nemo grouper sharing this matcher's store and scorer
func (m *Matcher) Nemo() *Nemo {
	return &Nemo{m: m}
}

// TopN writes Nemo edges from toponymID to its n best unplaced peers and
// returns the number of new edges. Pairs already recorded are kept as they are.
func (n *Nemo) TopN(ctx context.Context, toponymID uint, count int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	toponym, err := n.m.db.GetToponym(toponymID, nil)
	if err != nil {
		return 0, err
	}
	minScore := n.MinScore
	if minScore <= 0 {
		minScore = minimumNemoScore
	}
	edges, err := n.m.score(toponym, false, minScore)
	if err != nil {
		return 0, err
	}
	slices.SortStableFunc(edges, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.edge.StableToponymID, b.edge.StableToponymID)
	})
	if count > 0 && len(edges) > count {
		edges = edges[:count]
	}
	written, err := n.m.write(models.NemoTable, edges)
	if err != nil {
		return 0, err
	}
	n.m.logger.Debug("nemo edges written", "toponym_id", toponymID, "written", written)
	return written, nil
}
