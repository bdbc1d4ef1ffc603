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

// Package views flattens pivot results into view models the rendering layer
// consumes directly: nested header rows for the cross-tab column groups and
// one body row per visible tree node.
package views

import (
	"fmt"
	"strconv"

	"github.com/tabulata/tabulata/core/pivot"
)

// HeaderCell is one cell of a header row. Span is the number of leaf columns
// it covers; Rowspan lets a shallow group reach down past deeper split levels.
type HeaderCell struct {
	Label   string
	Span    int
	Rowspan int
}

// HeaderRow is one level of the nested column-group header.
type HeaderRow struct {
	Cells []HeaderCell
}

// BodyRow is one visible row of the pivot table.
type BodyRow struct {
	NodeID      string
	Label       string
	Depth       int
	HasChildren bool
	Expanded    bool
	ToggleURL   string
	Cells       []string // formatted, aligned with Columns
}

// IndentPx is the hierarchy indent of the row in pixels, for templates.
func (r BodyRow) IndentPx() int {
	return r.Depth * 16
}

// PivotViewModel is the complete renderable state of a pivot view.
type PivotViewModel struct {
	Title       string
	HeaderRows  []HeaderRow
	Columns     []pivot.Column // leaf columns, in render order
	LabelWidth  int
	Widths      []int // per leaf column, aligned with Columns
	Rows        []BodyRow
	Footer      []string // formatted grand-total cells, aligned with Columns
	HasFooter   bool
	SplitActive bool
}

// Linker builds the URL toggling a node's expansion; nil disables links.
type Linker func(nodeID string, expand bool) string

// ExpandedFn reports whether a node is visually expanded; nil falls back to
// the node's own flag.
type ExpandedFn func(n *pivot.Node) bool

// BuildPivotViewModel flattens an engine result into a renderable view model.
func BuildPivotViewModel(title string, res *pivot.Result, cfg pivot.Config, expanded ExpandedFn, linker Linker) PivotViewModel {
	idx := pivot.NewSignatureIndex()
	for _, sig := range res.SplitColumns {
		idx.Observe(sig)
	}
	groups := idx.ColumnGroups(cfg.Metrics)
	splitLevels := 0
	if len(res.SplitColumns) > 0 {
		splitLevels = len(cfg.SplitBy)
		// rollup column group rendered after the split groups
		totalCols := make([]pivot.Column, 0, len(cfg.Metrics))
		for _, m := range cfg.Metrics {
			totalCols = append(totalCols, pivot.Column{Key: pivot.CellKey(pivot.TotalKey, m.Field), Label: m.Label()})
		}
		groups = append(groups, pivot.ColumnGroup{Label: pivot.TotalKey, Columns: totalCols})
	}
	columns := leafColumns(groups)

	vm := PivotViewModel{
		Title:       title,
		Columns:     columns,
		LabelWidth:  res.ColumnWidths[pivot.HierarchyColumn],
		SplitActive: splitLevels > 0,
	}
	for _, col := range columns {
		vm.Widths = append(vm.Widths, res.ColumnWidths[col.Key])
	}
	vm.HeaderRows = headerRows(groups, columns, splitLevels)

	if expanded == nil {
		expanded = func(n *pivot.Node) bool { return n.Expanded }
	}
	var walk func(nodes []*pivot.Node)
	walk = func(nodes []*pivot.Node) {
		for _, n := range nodes {
			row := BodyRow{
				NodeID:      n.ID,
				Label:       n.Label,
				Depth:       n.Depth,
				HasChildren: len(n.Children) > 0 || n.HasMore,
				Expanded:    expanded(n),
			}
			for _, col := range columns {
				row.Cells = append(row.Cells, formatCell(n.Cells, col.Key))
			}
			if linker != nil && row.HasChildren {
				row.ToggleURL = linker(n.ID, !row.Expanded)
			}
			vm.Rows = append(vm.Rows, row)
			if row.Expanded {
				walk(n.Children)
			}
		}
	}
	walk(res.Tree)

	if res.GrandTotal != nil {
		vm.Footer = footerCells(res.GrandTotal, cfg, columns)
		vm.HasFooter = true
	}
	return vm
}

func leafColumns(groups []pivot.ColumnGroup) []pivot.Column {
	var out []pivot.Column
	for _, g := range groups {
		if len(g.Children) > 0 {
			out = append(out, leafColumns(g.Children)...)
			continue
		}
		out = append(out, g.Columns...)
	}
	return out
}

// headerRows turns the nested group shape into table header rows: one row per
// split level, plus the metric leaf row. A group that bottoms out above the
// deepest split level (the rollup group does) spans the remaining rows.
// Without splits only the metric row remains.
func headerRows(groups []pivot.ColumnGroup, columns []pivot.Column, splitLevels int) []HeaderRow {
	rows := make([]HeaderRow, splitLevels+1)
	var place func(gs []pivot.ColumnGroup, level int)
	place = func(gs []pivot.ColumnGroup, level int) {
		for _, g := range gs {
			if len(g.Children) == 0 {
				rows[level].Cells = append(rows[level].Cells, HeaderCell{
					Label:   g.Label,
					Span:    len(g.Columns),
					Rowspan: splitLevels - level,
				})
				continue
			}
			rows[level].Cells = append(rows[level].Cells, HeaderCell{Label: g.Label, Span: leafCount(g), Rowspan: 1})
			place(g.Children, level+1)
		}
	}
	if splitLevels > 0 {
		place(groups, 0)
	}
	metricRow := &rows[splitLevels]
	for _, col := range columns {
		metricRow.Cells = append(metricRow.Cells, HeaderCell{Label: col.Label, Span: 1, Rowspan: 1})
	}
	return rows
}

func leafCount(g pivot.ColumnGroup) int {
	if len(g.Children) == 0 {
		return len(g.Columns)
	}
	n := 0
	for _, c := range g.Children {
		n += leafCount(c)
	}
	return n
}

// footerCells folds the grand-total rows into one cell per leaf column.
func footerCells(total []pivot.Row, cfg pivot.Config, columns []pivot.Column) []string {
	cells := make(map[string]float64)
	for _, row := range total {
		sig := pivot.SignatureOf(row, cfg.SplitBy)
		for _, m := range cfg.Metrics {
			v := row.Metric(m.Field)
			cells[pivot.CellKey(sig, m.Field)] += v
			if sig != pivot.TotalKey {
				cells[m.Field] += v
			}
		}
	}
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = formatCell(cells, col.Key)
	}
	return out
}

func formatCell(cells map[string]float64, key string) string {
	v, ok := cells[key]
	if !ok {
		return "-"
	}
	return formatNumber(v)
}

// formatNumber formats a float64 for display: integers without decimals,
// otherwise up to 2 decimal places with trailing zeros trimmed.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	formatted := fmt.Sprintf("%.2f", v)
	for formatted[len(formatted)-1] == '0' {
		formatted = formatted[:len(formatted)-1]
	}
	if formatted[len(formatted)-1] == '.' {
		formatted = formatted[:len(formatted)-1]
	}
	return formatted
}
