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

package event

const (
	// ToponymsAddedEventType is published after a batch of toponyms is stored
	ToponymsAddedEventType = EventType("toponym.added")
	// ConsensusMergedEventType is published for every toponym placed by consensus
	ConsensusMergedEventType = EventType("consensus.merged")
	// DecisionEventType is published when a reviewer accepts a candidate
	DecisionEventType = EventType("navigator.decided")
	// RejectionEventType is published when a reviewer rejects candidates
	RejectionEventType = EventType("navigator.rejected")
	// MatcherProgressEventType carries matcher progress reports
	MatcherProgressEventType = EventType("matcher.progress")
	// MatchCompletedEventType is published when a matcher run finishes
	MatchCompletedEventType = EventType("matcher.completed")
	// ClusterCompletedEventType is published after a clustering run
	ClusterCompletedEventType = EventType("cluster.completed")
	// WikiBatchEventType is published after each augmentation batch
	WikiBatchEventType = EventType("augment.batch")
)

type ToponymsAddedEvent struct {
	Source string
	Count  int
}

type ConsensusMergedEvent struct {
	PositionID string
	Comment    string
	ToponymID  uint
}

type DecisionEvent struct {
	Table    string
	TargetID uint
	OptionID uint
}

type RejectionEvent struct {
	Table     string
	OptionIDs []uint
	TargetID  uint
}

type MatcherProgressEvent struct {
	Message    string
	Round      int
	LastID     uint
	PrevLastID uint
	Iterator   int
}

type MatchCompletedEvent struct {
	Err     error
	Source  string
	Rounds  int
	Written int
}

type ClusterCompletedEvent struct {
	Sources   []string
	RadiusKm  float64
	Positions int
	Clusters  int
}

type WikiBatchEvent struct {
	Items    int
	Toponyms int
}
