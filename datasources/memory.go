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

// Package datasources provides the data-side collaborators of the pivot
// engine: an in-process aggregation service for demos and tests, an HTTP
// client for a remote aggregation service, and a CSV loader for full-import
// mode.
package datasources

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabulata/tabulata/core/drill"
	"github.com/tabulata/tabulata/core/pivot"
)

// MemoryService answers aggregation requests from a flat in-memory row
// batch, mimicking the external service's contract: equality filters, GROUP
// BY the requested fields plus the split field, one summed value per metric.
// Group order preserves first appearance in the underlying batch.
type MemoryService struct {
	rows []pivot.Row
}

// NewMemoryService creates a service over the given rows.
func NewMemoryService(rows []pivot.Row) *MemoryService {
	return &MemoryService{rows: rows}
}

// Rows returns the underlying flat batch, for full-import aggregation.
func (s *MemoryService) Rows() []pivot.Row {
	return s.rows
}

// FetchAggregate implements drill.Fetcher.
func (s *MemoryService) FetchAggregate(ctx context.Context, req drill.Request) ([]pivot.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for field, f := range req.Filters {
		if f.Type != "" && f.Type != drill.FilterEquals {
			return nil, fmt.Errorf("unsupported filter type %q on field %q", f.Type, field)
		}
	}

	dims := append([]string{}, req.GroupBy...)
	if req.SplitBy != nil {
		dims = append(dims, *req.SplitBy)
	}

	groups := make(map[string]pivot.Row)
	var order []string
	for _, row := range s.rows {
		if !matchesFilters(row, req.Filters) {
			continue
		}
		key := groupKey(row, dims)
		out, ok := groups[key]
		if !ok {
			out = pivot.Row{}
			for _, d := range dims {
				out[d] = row.Dimension(d)
			}
			groups[key] = out
			order = append(order, key)
		}
		for _, m := range req.Metrics {
			out[m.Field] = out.Metric(m.Field) + row.Metric(m.Field)
		}
	}

	result := make([]pivot.Row, 0, len(order))
	for _, key := range order {
		result = append(result, groups[key])
	}
	return result, nil
}

func groupKey(row pivot.Row, dims []string) string {
	if len(dims) == 0 {
		return ""
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = row.Dimension(d)
	}
	return strings.Join(parts, pivot.Separator)
}

func matchesFilters(row pivot.Row, filters map[string]drill.FilterValue) bool {
	for field, f := range filters {
		if row.Dimension(field) != fmt.Sprintf("%v", f.Value) {
			return false
		}
	}
	return true
}
