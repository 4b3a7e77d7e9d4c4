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
	"errors"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/toponym/database"
)

const (
	DefaultPaginationPage = 1
	MaxPaginationCount    = database.BrowsePageSize
)

var ErrInvalidPaginationParameters = errors.New("invalid pagination parameters")

// PaginationParams contains parsed pagination query values
type PaginationParams struct {
	Count int
	Page  int
}

// ParsePagination parses the page and count query parameters and applies
// defaults and bounds clamping
func ParsePagination(r *http.Request) (PaginationParams, error) {
	params := PaginationParams{
		Count: MaxPaginationCount,
		Page:  DefaultPaginationPage,
	}
	query := r.URL.Query()
	if countParam := query.Get("count"); countParam != "" {
		count, err := strconv.Atoi(countParam)
		if err != nil {
			return PaginationParams{}, ErrInvalidPaginationParameters
		}
		params.Count = count
	}
	if pageParam := query.Get("page"); pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil {
			return PaginationParams{}, ErrInvalidPaginationParameters
		}
		params.Page = page
	}
	params.Count = min(max(params.Count, 1), MaxPaginationCount)
	params.Page = max(params.Page, 1)
	return params, nil
}

// SetPaginationHeaders reports the page that was served
func SetPaginationHeaders(w http.ResponseWriter, served int, params PaginationParams) {
	w.Header().Set("X-Pagination-Page", strconv.Itoa(params.Page))
	w.Header().Set("X-Pagination-Count", strconv.Itoa(max(served, 0)))
}
