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

// EdgeTable names one of the two tables holding candidate links
type EdgeTable string

const (
	// SuggestionTable holds edges from an unplaced toponym to a placed one
	SuggestionTable EdgeTable = "suggestion"
	// NemoTable holds edges among unplaced toponyms
	NemoTable EdgeTable = "nemo"
)

// EdgeTableFor returns the edge table used by the Nemo or suggestion workflow
func EdgeTableFor(nemo bool) EdgeTable {
	if nemo {
		return NemoTable
	}
	return SuggestionTable
}

// Edge is a candidate link between two toponyms. A nil Outcome is
// unresolved, true is accepted and false is rejected.
type Edge struct {
	Outcome         *bool `gorm:"index"`
	Comment         string
	ID              uint `gorm:"primarykey"`
	AddedToponymID  uint `gorm:"column:added_toponym_fk;not null;uniqueIndex:,composite:pair"`
	StableToponymID uint `gorm:"column:stable_toponym_fk;not null;uniqueIndex:,composite:pair;index"`
}

func (e *Edge) Unresolved() bool {
	return e.Outcome == nil
}

func (e *Edge) Accepted() bool {
	return e.Outcome != nil && *e.Outcome
}

func (e *Edge) Rejected() bool {
	return e.Outcome != nil && !*e.Outcome
}

type Suggestion struct {
	Edge
}

func (Suggestion) TableName() string {
	return string(SuggestionTable)
}

type Nemo struct {
	Edge
}

func (Nemo) TableName() string {
	return string(NemoTable)
}

// Outcome helpers for building edges
func OutcomeAccepted() *bool {
	v := true
	return &v
}

func OutcomeRejected() *bool {
	v := false
	return &v
}
