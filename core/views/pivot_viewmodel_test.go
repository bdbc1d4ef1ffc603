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

package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabulata/tabulata/core/pivot"
)

func salesConfig() pivot.Config {
	return pivot.Config{
		GroupBy: []string{"Year", "Region"},
		SplitBy: []string{"Channel"},
		Metrics: []pivot.Metric{{Field: "Sales", Aggregation: pivot.SumAggregation}},
	}
}

func salesResult(t *testing.T) *pivot.Result {
	t.Helper()
	rows := []pivot.Row{
		{"Year": "2023", "Region": "EU", "Channel": "Store", "Sales": 100.0},
		{"Year": "2023", "Region": "US", "Channel": "Web", "Sales": 50.0},
		{"Year": "2024", "Region": "EU", "Channel": "Web", "Sales": 80.0},
	}
	return pivot.Aggregate(rows, salesConfig())
}

func TestBuildPivotViewModelHeaders(t *testing.T) {
	vm := BuildPivotViewModel("Sales", salesResult(t), salesConfig(), nil, nil)

	// one split level plus the metric row
	require.Len(t, vm.HeaderRows, 2)
	split := vm.HeaderRows[0]
	require.Len(t, split.Cells, 3)
	assert.Equal(t, HeaderCell{Label: "Store", Span: 1, Rowspan: 1}, split.Cells[0])
	assert.Equal(t, HeaderCell{Label: "Web", Span: 1, Rowspan: 1}, split.Cells[1])
	assert.Equal(t, HeaderCell{Label: pivot.TotalKey, Span: 1, Rowspan: 1}, split.Cells[2])

	require.Len(t, vm.Columns, 3)
	assert.Equal(t, "Store_Sales", vm.Columns[0].Key)
	assert.Equal(t, "Web_Sales", vm.Columns[1].Key)
	assert.Equal(t, "Sales", vm.Columns[2].Key)
}

func TestBuildPivotViewModelCollapsedTree(t *testing.T) {
	// default expansion function uses node flags; full-mode nodes start
	// collapsed so only the top level is visible
	vm := BuildPivotViewModel("Sales", salesResult(t), salesConfig(), nil, nil)

	require.Len(t, vm.Rows, 2)
	assert.Equal(t, "2023", vm.Rows[0].Label)
	assert.Equal(t, "2024", vm.Rows[1].Label)
	assert.True(t, vm.Rows[0].HasChildren)
	// the Total column carries the rollup
	assert.Equal(t, "150", vm.Rows[0].Cells[2])
	// 2023 has no Web-only EU rows; Store cell present, Web cell present
	assert.Equal(t, "100", vm.Rows[0].Cells[0])
	assert.Equal(t, "50", vm.Rows[0].Cells[1])
	// 2024 never saw a Store row
	assert.Equal(t, "-", vm.Rows[1].Cells[0])
}

func TestBuildPivotViewModelExpansion(t *testing.T) {
	res := salesResult(t)
	id2023 := pivot.ChildID(pivot.RootID, "2023")
	expanded := func(n *pivot.Node) bool { return n.ID == id2023 }

	var linked []string
	linker := func(id string, expand bool) string {
		linked = append(linked, id)
		return "/pivot?toggle=" + id
	}

	vm := BuildPivotViewModel("Sales", res, salesConfig(), expanded, linker)

	require.Len(t, vm.Rows, 4)
	assert.Equal(t, "2023", vm.Rows[0].Label)
	assert.Equal(t, "EU", vm.Rows[1].Label)
	assert.Equal(t, "US", vm.Rows[2].Label)
	assert.Equal(t, "2024", vm.Rows[3].Label)
	assert.Equal(t, 1, vm.Rows[1].Depth)
	assert.True(t, vm.Rows[0].Expanded)
	assert.False(t, vm.Rows[3].Expanded)
	// leaf nodes get no toggle link
	assert.NotEmpty(t, vm.Rows[0].ToggleURL)
	assert.Empty(t, vm.Rows[1].ToggleURL)
	assert.Contains(t, linked, id2023)
}

func TestBuildPivotViewModelFooter(t *testing.T) {
	vm := BuildPivotViewModel("Sales", salesResult(t), salesConfig(), nil, nil)

	require.True(t, vm.HasFooter)
	require.Len(t, vm.Footer, 3)
	assert.Equal(t, "100", vm.Footer[0]) // Store
	assert.Equal(t, "130", vm.Footer[1]) // Web
	assert.Equal(t, "230", vm.Footer[2]) // Total
}

func TestBuildPivotViewModelNoSplit(t *testing.T) {
	cfg := pivot.Config{
		GroupBy: []string{"Year"},
		Metrics: []pivot.Metric{{Field: "Sales", Aggregation: pivot.SumAggregation}},
	}
	res := pivot.Aggregate([]pivot.Row{
		{"Year": "2023", "Sales": 150.0},
	}, cfg)

	vm := BuildPivotViewModel("Sales", res, cfg, nil, nil)
	assert.False(t, vm.SplitActive)
	// only the metric header row
	require.Len(t, vm.HeaderRows, 1)
	require.Len(t, vm.Columns, 1)
	assert.Equal(t, "Sales", vm.Columns[0].Key)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "150", formatNumber(150))
	assert.Equal(t, "150.5", formatNumber(150.5))
	assert.Equal(t, "0.33", formatNumber(1.0/3.0))
	assert.Equal(t, "-7", formatNumber(-7))
}
