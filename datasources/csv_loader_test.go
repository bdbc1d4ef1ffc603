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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	data := strings.Join([]string{
		"Year,Region,Sales",
		"2023,EU,100.5",
		"2023,US,50",
		"2024,EU,",
	}, "\n")

	rows, columns, err := LoadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 100.5, rows[0].Metric("Sales"))
	assert.Equal(t, "EU", rows[0].Dimension("Region"))
	// empty cells are absent, and coerce to zero as metrics
	assert.Equal(t, 0.0, rows[2].Metric("Sales"))

	require.Len(t, columns, 3)
	assert.Equal(t, ColumnInfo{Name: "Year", Type: "number"}, columns[0])
	assert.Equal(t, ColumnInfo{Name: "Region", Type: "string"}, columns[1])
	assert.Equal(t, ColumnInfo{Name: "Sales", Type: "number"}, columns[2])
}

func TestLoadCSVMixedColumnIsString(t *testing.T) {
	data := "Code\n123\nABC\n"
	_, columns, err := LoadCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "string", columns[0].Type)
}

func TestLoadCSVEmptyBody(t *testing.T) {
	rows, columns, err := LoadCSV(strings.NewReader("Year,Sales\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
	// a column with no values is not a metric candidate
	assert.Equal(t, "string", columns[1].Type)
}

func TestLoadCSVMissingHeader(t *testing.T) {
	_, _, err := LoadCSV(strings.NewReader(""))
	assert.Error(t, err)
}
