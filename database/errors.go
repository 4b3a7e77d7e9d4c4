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
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrSourceNotFound = errors.New("source not found")
	ErrSourceExists   = errors.New("source already exists")
	ErrInvalidSource  = errors.New("invalid source")
)

// SourceError ties a source problem to the offending source name
type SourceError struct {
	Err  error
	Name string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %q: %s", e.Name, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// isIntegrityError reports whether err is a uniqueness or key constraint violation
func isIntegrityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "constraint failed")
}
