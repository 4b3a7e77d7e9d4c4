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

package api

import (
	"time"

	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/task"
)

// RootResponse is returned by GET /
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	IsHealthy   bool  `json:"is_healthy"`
	PendingWiki int64 `json:"pending_wiki"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type SourceRequest struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
	Year    int    `json:"year"`
}

type SourceResponse struct {
	Name     string    `json:"name"`
	Comment  string    `json:"comment"`
	EditedAt time.Time `json:"edited"`
	Year     int       `json:"year"`
	User     bool      `json:"user"`
}

func sourceResponse(s models.Source) SourceResponse {
	return SourceResponse{
		Name:     s.Name,
		Comment:  s.Comment,
		EditedAt: s.EditedAt,
		Year:     s.Year,
		User:     s.IsUserSource(),
	}
}

// ToponymRequest is one raw name to add to a source
type ToponymRequest struct {
	PositionID *string `json:"position_id"`
	Name       string  `json:"name"`
	Language   string  `json:"language"`
}

type AddedResponse struct {
	Added int `json:"added"`
}

type ToponymResponse struct {
	PositionID *string   `json:"position_id"`
	EditedAt   time.Time `json:"edited"`
	Name       string    `json:"name"`
	ASCIIName  string    `json:"asciiname"`
	Tokens     string    `json:"tokens"`
	Source     string    `json:"source"`
	Language   string    `json:"language"`
	Comment    string    `json:"comment"`
	ID         uint      `json:"id"`
}

func toponymResponse(t models.Toponym) ToponymResponse {
	return ToponymResponse{
		PositionID: t.PositionID,
		EditedAt:   t.UpdatedAt,
		Name:       t.Name,
		ASCIIName:  t.ASCIIName,
		Tokens:     t.Tokens,
		Source:     t.SourceName,
		Language:   t.Language,
		Comment:    t.Comment,
		ID:         t.ID,
	}
}

type PositionResponse struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	ParentID  string  `json:"parent_id"`
	Comment   string  `json:"comment"`
	Toponyms  string  `json:"toponyms"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type DecideRequest struct {
	Target uint `json:"target"`
	Option uint `json:"option"`
	Nemo   bool `json:"nemo"`
}

type RejectRequest struct {
	Options []uint `json:"options"`
	Target  uint   `json:"target"`
	Nemo    bool   `json:"nemo"`
}

// ResolveRequest resolves one toponym, or every queued toponym when Target
// is nil
type ResolveRequest struct {
	Target *uint `json:"target"`
}

type ResolveResponse struct {
	Comment string `json:"comment,omitempty"`
	Merged  int    `json:"merged"`
}

type TaskResponse struct {
	Started  time.Time   `json:"started"`
	Finished *time.Time  `json:"finished,omitempty"`
	State    any         `json:"state,omitempty"`
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   task.Status `json:"status"`
	Error    string      `json:"error,omitempty"`
}

func taskResponse(t *task.Task) TaskResponse {
	ret := TaskResponse{
		Started: t.Started(),
		State:   t.State(),
		ID:      t.ID(),
		Name:    t.Name(),
		Status:  t.Status(),
	}
	if finished := t.Finished(); !finished.IsZero() {
		ret.Finished = &finished
	}
	if err := t.Err(); err != nil {
		ret.Error = err.Error()
	}
	return ret
}
