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
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/normalize"
)

// Signature is the part of a toponym that scorers compare
type Signature struct {
	Tokens      string
	ASCIITokens string
}

// SignatureOf returns the stored signature of a toponym
func SignatureOf(t *models.Toponym) Signature {
	return Signature{Tokens: t.Tokens, ASCIITokens: t.ASCIITokens}
}

// Scorer rates how likely two signatures name the same place, from 0 to 1
type Scorer interface {
	Name() string
	Score(a Signature, b Signature) float64
}

// TokenSetScorer is the Jaccard similarity of the token sets, taking the
// better of the raw and the ASCII signatures
type TokenSetScorer struct{}

func (TokenSetScorer) Name() string {
	return "tokenset"
}

func (TokenSetScorer) Score(a Signature, b Signature) float64 {
	return max(
		jaccard(normalize.TokenSet(a.Tokens), normalize.TokenSet(b.Tokens)),
		jaccard(normalize.TokenSet(a.ASCIITokens), normalize.TokenSet(b.ASCIITokens)),
	)
}

// ExactScorer scores 1 when either signature is identical and 0 otherwise.
// Two sentinel signatures never match.
type ExactScorer struct{}

func (ExactScorer) Name() string {
	return "exact"
}

func (ExactScorer) Score(a Signature, b Signature) float64 {
	if a.Tokens != normalize.Sentinel && a.Tokens == b.Tokens {
		return 1
	}
	if a.ASCIITokens != normalize.Sentinel && a.ASCIITokens == b.ASCIITokens {
		return 1
	}
	return 0
}

func jaccard(a []string, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, token := range a {
		set[token] = struct{}{}
	}
	union := len(set)
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, token := range b {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		if _, ok := set[token]; ok {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}

// ScorerByName returns the built-in scorer called name
func ScorerByName(name string) (Scorer, bool) {
	switch name {
	case "", TokenSetScorer{}.Name():
		return TokenSetScorer{}, true
	case ExactScorer{}.Name():
		return ExactScorer{}, true
	}
	return nil, false
}
