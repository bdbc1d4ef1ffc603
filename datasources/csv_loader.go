/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 The Tabulata Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package datasources

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tabulata/tabulata/core/pivot"
)

// ColumnInfo describes one column of a loaded dataset for pivot
// configuration UIs: "number" columns are metric candidates, "string"
// columns are dimension candidates.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LoadCSVFile reads a CSV file with a header row into a flat row batch.
func LoadCSVFile(path string) ([]pivot.Row, []ColumnInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return LoadCSV(file)
}

// LoadCSV reads CSV data with a header row into a flat row batch. Values
// that parse as numbers load as float64 so they can serve as metrics;
// everything else stays a string. A column is reported numeric only if every
// non-empty value in it parsed as a number.
func LoadCSV(r io.Reader) ([]pivot.Row, []ColumnInfo, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	numeric := make([]bool, len(header))
	seen := make([]bool, len(header))
	for i := range numeric {
		numeric[i] = true
	}

	var rows []pivot.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV row %d: %w", len(rows)+2, err)
		}
		row := make(pivot.Row, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			if value == "" {
				continue
			}
			seen[i] = true
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				row[header[i]] = f
			} else {
				row[header[i]] = value
				numeric[i] = false
			}
		}
		rows = append(rows, row)
	}

	columns := make([]ColumnInfo, len(header))
	for i, name := range header {
		colType := "string"
		if numeric[i] && seen[i] {
			colType = "number"
		}
		columns[i] = ColumnInfo{Name: name, Type: colType}
	}
	return rows, columns, nil
}
