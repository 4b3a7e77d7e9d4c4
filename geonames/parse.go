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

package geonames

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	placeColumns   = 19
	altNameColumns = 10
	adminColumns   = 4

	maxLineLength = 1024 * 1024
)

var ErrMalformedRow = errors.New("malformed row")

// RowError points at the line of a dump that could not be parsed
type RowError struct {
	Err     error
	File    string
	Line    int
	Columns int
}

func (e *RowError) Error() string {
	return fmt.Sprintf(
		"%s line %d: %s (%d columns)",
		e.File, e.Line, e.Err, e.Columns,
	)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Place is one row of a country dump
type Place struct {
	GeonameID    string
	Name         string
	ASCIIName    string
	FeatureClass string
	FeatureCode  string
	CountryCode  string
	Admin1Code   string
	Admin2Code   string
	Latitude     float64
	Longitude    float64
}

// AdminCode is one row of admin2Codes.txt
type AdminCode struct {
	Code      string
	Name      string
	ASCIIName string
	GeonameID string
}

// AltName is one row of alternateNamesV2.txt
type AltName struct {
	GeonameID string
	Language  string
	Name      string
}

// IsWikipediaLink reports whether the row is a link to a Wikipedia page
func (a AltName) IsWikipediaLink() bool {
	return a.Language == "link" && strings.Contains(a.Name, "wikipedia")
}

// ParsePlaces calls fn for every place in a country dump
func ParsePlaces(file string, r io.Reader, fn func(Place) error) error {
	return scanRows(file, r, placeColumns, func(fields []string) error {
		lat, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return fmt.Errorf("latitude: %w", err)
		}
		lng, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return fmt.Errorf("longitude: %w", err)
		}
		return fn(Place{
			GeonameID:    fields[0],
			Name:         fields[1],
			ASCIIName:    fields[2],
			Latitude:     lat,
			Longitude:    lng,
			FeatureClass: fields[6],
			FeatureCode:  fields[7],
			CountryCode:  fields[8],
			Admin1Code:   fields[10],
			Admin2Code:   fields[11],
		})
	})
}

// ParseAdminCodes calls fn for every admin2 region
func ParseAdminCodes(file string, r io.Reader, fn func(AdminCode) error) error {
	return scanRows(file, r, adminColumns, func(fields []string) error {
		return fn(AdminCode{
			Code:      fields[0],
			Name:      fields[1],
			ASCIIName: fields[2],
			GeonameID: fields[3],
		})
	})
}

// ParseAltNames calls fn for every alternate name
func ParseAltNames(file string, r io.Reader, fn func(AltName) error) error {
	return scanRows(file, r, altNameColumns, func(fields []string) error {
		return fn(AltName{
			GeonameID: fields[1],
			Language:  fields[2],
			Name:      fields[3],
		})
	})
}

func scanRows(file string, r io.Reader, columns int, fn func([]string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != columns {
			return &RowError{
				Err:     ErrMalformedRow,
				File:    file,
				Line:    line,
				Columns: len(fields),
			}
		}
		if err := fn(fields); err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				return err
			}
			return &RowError{Err: err, File: file, Line: line, Columns: len(fields)}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	return nil
}
