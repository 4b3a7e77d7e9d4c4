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

// Package export renders query results as tab-separated text or spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const DefaultSheet = "Export"

// Table is a header and its rows. Cells are strings or numbers.
type Table struct {
	Header []string
	Rows   [][]any
}

// Empty reports whether the table has no rows
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// FormatCell renders one TSV cell. Numbers and numeric text are written as
// is. Other text is trimmed, has newlines replaced by underscores and is
// wrapped in double quotes.
func FormatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return `""`
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return v
		}
		v = strings.ReplaceAll(strings.TrimSpace(v), "\n", "_")
		return `"` + v + `"`
	default:
		return FormatCell(fmt.Sprint(v))
	}
}

// TSV renders the header and rows as tab-separated text without a trailing
// newline
func (t Table) TSV() string {
	var b strings.Builder
	write := func(cells []string) {
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteByte('\n')
	}
	header := make([]string, len(t.Header))
	for i, h := range t.Header {
		header[i] = FormatCell(h)
	}
	write(header)
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = FormatCell(cell)
		}
		write(cells)
	}
	return strings.TrimSpace(b.String())
}

// WriteXLSX writes the table as a single-sheet workbook
func (t Table) WriteXLSX(w io.Writer, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if len(t.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
