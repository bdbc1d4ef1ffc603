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

// Package pivot turns flat batches of aggregated rows (dimension plus metric
// columns) into a multi-level row hierarchy crossed with a dynamic set of
// cross-tab column groups. It contains the full in-memory aggregation engine
// used in "import everything" mode, plus the building blocks (path codec,
// split-signature index, width estimator) shared with the lazy per-level
// coordinator in core/drill.
package pivot

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Separator joins dimension values into node ids and split signatures.
	// ASCII unit separator; dimension values are assumed not to contain it.
	Separator = "\x1f"

	// TotalKey is the aggregate bucket holding row totals across all splits.
	TotalKey = "Total"

	// RootLabel is the display label of the synthetic root node.
	RootLabel = "Grand Total"

	// NotAvailable labels missing or null dimension values.
	NotAvailable = "(not available)"
)

// SumAggregation is the only aggregation function the engine computes itself.
// Other functions belong to the external aggregation service.
const SumAggregation = "SUM"

// Row is one flat record as returned by a query or an aggregation service.
// Fields partition into dimension fields (group/split) and metric fields.
type Row map[string]any

// Dimension returns the row's value for a dimension field as a display label.
// Missing and null values map to the NotAvailable sentinel, never to an error.
func (r Row) Dimension(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return NotAvailable
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Metric returns the row's value for a metric field coerced to float64.
// Missing or non-numeric values coerce to 0; this absorbs bad data instead of
// failing, which is a documented data-quality risk rather than an error.
func (r Row) Metric(field string) float64 {
	v, ok := r[field]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Metric describes one value column to summarize per group/split combination.
type Metric struct {
	Name        string // display name; defaults to Field when empty
	Field       string // source column holding the numeric value
	Aggregation string // aggregation function; only SUM is supported locally
	DisplayType string // optional rendering hint (e.g. "currency", "percent")
}

// Label returns the metric's display name.
func (m Metric) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Field
}

// Config is one pivot configuration: the ordered row-hierarchy fields, the
// ordered cross-tab split fields, and the metric list.
type Config struct {
	GroupBy []string
	SplitBy []string
	Metrics []Metric
}

// Validate checks the configuration for problems the engine cannot absorb.
func (c Config) Validate() error {
	if len(c.Metrics) == 0 {
		return fmt.Errorf("pivot config requires at least one metric")
	}
	for _, m := range c.Metrics {
		if m.Field == "" {
			return fmt.Errorf("metric %q has no source field", m.Name)
		}
		if m.Aggregation != "" && m.Aggregation != SumAggregation {
			return fmt.Errorf("unsupported aggregation %q for metric %q (only %s)", m.Aggregation, m.Field, SumAggregation)
		}
	}
	seen := make(map[string]bool, len(c.GroupBy)+len(c.SplitBy))
	for _, f := range c.GroupBy {
		if f == "" {
			return fmt.Errorf("empty group-by field")
		}
		if seen[f] {
			return fmt.Errorf("duplicate dimension field %q", f)
		}
		seen[f] = true
	}
	for _, f := range c.SplitBy {
		if f == "" {
			return fmt.Errorf("empty split-by field")
		}
		if seen[f] {
			return fmt.Errorf("duplicate dimension field %q", f)
		}
		seen[f] = true
	}
	return nil
}

// Result is the engine output consumed by the rendering layer.
type Result struct {
	// Tree holds the top-level hierarchy rows. When the group-by list is
	// empty the synthetic grand-total row is the sole entry.
	Tree []*Node `json:"tree"`
	// SplitColumns is the globally sorted list of observed split signatures.
	SplitColumns []string `json:"split_columns"`
	// ColumnWidths maps generated column keys to advisory pixel widths.
	ColumnWidths map[string]int `json:"column_widths"`
	// GrandTotal holds the footer rows of the group-by-less aggregation,
	// one per split signature when splits are active. Nil when unavailable.
	GrandTotal []Row `json:"grand_total,omitempty"`
}
