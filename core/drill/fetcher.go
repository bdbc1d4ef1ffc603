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

// Package drill orchestrates lazy, per-level loading of a pivot hierarchy
// against an external aggregation service. The service owns SQL-level rollup
// correctness; this package treats every response purely as an unordered flat
// row batch to attach into a partial tree.
package drill

import (
	"context"

	"github.com/tabulata/tabulata/core/pivot"
)

// FilterEquals is the only filter type the coordinator emits; the service
// contract allows others.
const FilterEquals = "equals"

// FilterValue is one filter predicate of the aggregation request.
type FilterValue struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// Equals builds an equality filter.
func Equals(v any) FilterValue {
	return FilterValue{Value: v, Type: FilterEquals}
}

// MetricSpec is the wire form of one metric descriptor.
type MetricSpec struct {
	Name        string `json:"name,omitempty"`
	Field       string `json:"field"`
	Aggregation string `json:"aggregation"`
}

// SortSpec is the wire form of one sort directive. The coordinator always
// sends an empty list; row order is irrelevant to aggregation.
type SortSpec struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Request is the contract to the external aggregation service. Each response
// row carries one value per requested group field, one per split field (if
// any), and one numeric value per metric. A grand-total request is the same
// contract with an empty group_by.
type Request struct {
	GroupBy []string               `json:"group_by"`
	SplitBy *string                `json:"split_by"`
	Metrics []MetricSpec           `json:"metrics"`
	Filters map[string]FilterValue `json:"filters"`
	Sort    []SortSpec             `json:"sort"`
}

// Fetcher issues one aggregation request. Implementations own transport
// concerns (retries, timeouts); the coordinator owns tree state.
type Fetcher interface {
	FetchAggregate(ctx context.Context, req Request) ([]pivot.Row, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) ([]pivot.Row, error)

// FetchAggregate calls f.
func (f FetcherFunc) FetchAggregate(ctx context.Context, req Request) ([]pivot.Row, error) {
	return f(ctx, req)
}

func metricSpecs(metrics []pivot.Metric) []MetricSpec {
	out := make([]MetricSpec, 0, len(metrics))
	for _, m := range metrics {
		agg := m.Aggregation
		if agg == "" {
			agg = pivot.SumAggregation
		}
		out = append(out, MetricSpec{Name: m.Name, Field: m.Field, Aggregation: agg})
	}
	return out
}
