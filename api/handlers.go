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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/blinklabs-io/toponym/cluster"
	"github.com/blinklabs-io/toponym/database"
	"github.com/blinklabs-io/toponym/database/models"
	"github.com/blinklabs-io/toponym/export"
	"github.com/blinklabs-io/toponym/internal/version"
	"github.com/blinklabs-io/toponym/matcher"
	"github.com/blinklabs-io/toponym/navigator"
)

const (
	formatTSV  = "tsv"
	formatXLSX = "xlsx"

	contentTypeTSV  = "text/tab-separated-values; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxRequestBody = 1 << 20
)

var errUnavailable = errors.New("component not configured")

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, database.ErrSourceNotFound),
		errors.Is(err, models.ErrToponymNotFound),
		errors.Is(err, models.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrSourceExists),
		errors.Is(err, models.ErrPositionExists),
		errors.Is(err, matcher.ErrMatcherRunning):
		return http.StatusConflict
	case errors.Is(err, database.ErrInvalidSource),
		errors.Is(err, navigator.ErrInvalidSelection),
		errors.Is(err, cluster.ErrNoSources),
		errors.Is(err, cluster.ErrInvalidRadius),
		errors.Is(err, ErrInvalidPaginationParameters):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail logs unexpected errors and writes the mapped error response
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, true
	}
	ret, err := strconv.Atoi(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return ret, true
}

func queryBool(r *http.Request, name string) bool {
	ret, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return ret
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "toponym",
		Version: version.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{IsHealthy: true}
	if s.backend.Queue != nil {
		pending, err := s.backend.Queue.Pending()
		if err != nil {
			s.logger.Error("failed to count wiki queue", "error", err)
			resp.IsHealthy = false
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.PendingWiki = pending
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if s.backend.Database == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	sources, err := s.backend.Database.ListSources(queryBool(r, "user"), nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ret := make([]SourceResponse, 0, len(sources))
	for _, source := range sources {
		ret = append(ret, sourceResponse(source))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	if s.backend.Database == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var req SourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	source, err := s.backend.Database.AddSource(req.Name, req.Comment, req.Year, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sourceResponse(*source))
}

func (s *Server) handleAddToponyms(w http.ResponseWriter, r *http.Request) {
	if s.backend.Database == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var req []ToponymRequest
	if !decodeBody(w, r, &req) {
		return
	}
	raw := make([]database.RawToponym, 0, len(req))
	for _, item := range req {
		raw = append(raw, database.RawToponym{
			PositionID: item.PositionID,
			Name:       item.Name,
			Language:   item.Language,
		})
	}
	added, err := s.backend.Database.AddToponyms(r.PathValue("name"), raw, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddedResponse{Added: added})
}

func (s *Server) handleBrowseToponyms(w http.ResponseWriter, r *http.Request) {
	if s.backend.Database == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	query := r.URL.Query()
	rows, err := s.backend.Database.BrowseToponyms(database.ToponymFilter{
		Source:         query.Get("source"),
		Name:           query.Get("name"),
		PositionID:     query.Get("position"),
		PositionSource: query.Get("position_source"),
		Page:           params.Page,
	}, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(rows) > params.Count {
		rows = rows[:params.Count]
	}
	ret := make([]ToponymResponse, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, toponymResponse(row))
	}
	SetPaginationHeaders(w, len(ret), params)
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleToponym(w http.ResponseWriter, r *http.Request) {
	if s.backend.Database == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	details, err := s.backend.Database.ToponymData([]uint{id}, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(details) == 0 {
		s.fail(w, r, models.ErrToponymNotFound)
		return
	}
	writeJSON(w, http.StatusOK, details[0])
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if s.backend.Database == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	id := r.PathValue("id")
	position, err := s.backend.Database.GetPosition(id, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	toponyms, err := s.backend.Database.PositionToponyms(id, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PositionResponse{
		ID:        position.ID,
		Source:    position.SourceName,
		ParentID:  position.ParentID,
		Comment:   position.Comment,
		Toponyms:  toponyms,
		Latitude:  position.Latitude,
		Longitude: position.Longitude,
	})
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	if s.backend.Navigator == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var index *int
	if r.URL.Query().Has("index") {
		value, ok := queryInt(w, r, "index")
		if !ok {
			return
		}
		index = &value
	}
	page, err := s.backend.Navigator.Goto(r.Context(), index, queryBool(r, "nemo"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	if s.backend.Navigator == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var req DecideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backend.Navigator.Decide(r.Context(), req.Target, req.Option, req.Nemo)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if s.backend.Navigator == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var req RejectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.backend.Navigator.Reject(r.Context(), req.Target, req.Options, req.Nemo)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNextNemo(w http.ResponseWriter, r *http.Request) {
	if s.backend.Navigator == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	index, ok := queryInt(w, r, "index")
	if !ok {
		return
	}
	entry, found, err := s.backend.Navigator.NextNemo(r.Context(), index)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no unplaced toponyms")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if s.backend.Consensus == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var req ResolveRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.Target != nil {
		comment, err := s.backend.Consensus.Resolve(r.Context(), req.Target)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp := ResolveResponse{Comment: comment}
		if !strings.HasPrefix(comment, "No suggestions") {
			resp.Merged = 1
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	merged, err := s.backend.Consensus.ResolveAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Merged: merged})
}

func (s *Server) handleStartMatcher(w http.ResponseWriter, r *http.Request) {
	if s.backend.Matcher == nil || s.backend.Runner == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	source := r.URL.Query().Get("source")
	if source != "" && s.backend.Database != nil {
		if err := s.backend.Database.RequireSource(nil, source); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	t, err := s.backend.Matcher.Start(s.backend.Runner, source)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskResponse(t))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.backend.Runner == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	tasks := s.backend.Runner.List()
	ret := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		ret = append(ret, taskResponse(t))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if s.backend.Runner == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	t, ok := s.backend.Runner.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(t))
}

func (s *Server) handleKillTask(w http.ResponseWriter, r *http.Request) {
	if s.backend.Runner == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	t, ok := s.backend.Runner.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	t.Kill()
	if err := t.Wait(r.Context()); err != nil && r.Context().Err() != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse(t))
}

func (s *Server) handleClusterExport(w http.ResponseWriter, r *http.Request) {
	if s.backend.Cluster == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	query := r.URL.Query()
	var sources []string
	for _, source := range strings.Split(query.Get("sources"), ",") {
		if source = strings.TrimSpace(source); source != "" {
			sources = append(sources, source)
		}
	}
	radius := s.config.RadiusKm
	if value := query.Get("radius"); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid radius")
			return
		}
		radius = parsed
	}
	result, err := s.backend.Cluster.Cluster(r.Context(), sources, radius)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeTable(w, r, "clusters", export.ClusterTable(result))
}

func (s *Server) handleSelectionExport(w http.ResponseWriter, r *http.Request) {
	if s.backend.Exporter == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	query := r.URL.Query()
	table, err := s.backend.Exporter.Selection(r.Context(), database.SelectionFilter{
		Source:   query.Get("source"),
		Source2:  query.Get("source2"),
		NoSource: query.Get("nosource"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeTable(w, r, "selection", table)
}

func (s *Server) handleYearExport(w http.ResponseWriter, r *http.Request) {
	if s.backend.Exporter == nil {
		s.fail(w, r, errUnavailable)
		return
	}
	var filter database.YearFilter
	var ok bool
	if filter.Year, ok = queryInt(w, r, "year"); !ok {
		return
	}
	if filter.Year2, ok = queryInt(w, r, "year2"); !ok {
		return
	}
	if filter.NoYear, ok = queryInt(w, r, "noyear"); !ok {
		return
	}
	table, err := s.backend.Exporter.SelectionByYear(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeTable(w, r, "selection", table)
}

// writeTable sends table in the format named by the format query parameter
func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, name string, table export.Table) {
	switch format := r.URL.Query().Get("format"); format {
	case "", formatTSV:
		w.Header().Set("Content-Type", contentTypeTSV)
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck
		w.Write([]byte(table.TSV()))
	case formatXLSX:
		w.Header().Set("Content-Type", contentTypeXLSX)
		w.Header().Set("Content-Disposition", "attachment; filename=\""+name+".xlsx\"")
		if err := table.WriteXLSX(w, ""); err != nil {
			s.logger.Error("failed to write spreadsheet", "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+format)
	}
}
