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

package pivot

// HierarchyColumn is the width-map key of the row-hierarchy (label) column.
const HierarchyColumn = "__hierarchy__"

// Width heuristic constants. Purely advisory; consumers may override.
const (
	charWidth   = 8 // average rendered character width in px
	indentWidth = 16

	metricPadding = 24
	metricMin     = 80
	metricMax     = 320

	hierarchyPadding = 48
	hierarchyMin     = 140
	hierarchyMax     = 480
)

// WidthEstimator derives advisory pixel widths from the maximum observed
// rendered length per generated column key, and from per-depth label lengths
// for the hierarchy column. It is fed as a side effect of aggregation, never
// by a second pass over the row batch.
type WidthEstimator struct {
	labelMax int // max of label length plus indent, in character units
	cellMax  map[string]int
}

// NewWidthEstimator creates an empty estimator.
func NewWidthEstimator() *WidthEstimator {
	return &WidthEstimator{cellMax: make(map[string]int)}
}

// ObserveLabel records a hierarchy label rendered at the given depth.
func (e *WidthEstimator) ObserveLabel(depth int, label string) {
	// indentation consumes width the same way characters do
	units := len(label) + depth*indentWidth/charWidth
	if units > e.labelMax {
		e.labelMax = units
	}
}

// ObserveCell records a rendered value (or header label) for a column key.
func (e *WidthEstimator) ObserveCell(key, rendered string) {
	if len(rendered) > e.cellMax[key] {
		e.cellMax[key] = len(rendered)
	}
}

// Widths returns the advisory width per column key, plus the hierarchy column
// under HierarchyColumn. Hierarchy and metric columns clamp to distinct
// bounds.
func (e *WidthEstimator) Widths() map[string]int {
	out := make(map[string]int, len(e.cellMax)+1)
	out[HierarchyColumn] = clampWidth(e.labelMax*charWidth+hierarchyPadding, hierarchyMin, hierarchyMax)
	for key, maxLen := range e.cellMax {
		out[key] = clampWidth(maxLen*charWidth+metricPadding, metricMin, metricMax)
	}
	return out
}

func clampWidth(w, lo, hi int) int {
	if w < lo {
		return lo
	}
	if w > hi {
		return hi
	}
	return w
}
