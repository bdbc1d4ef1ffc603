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

// Package query parses and serializes the URL state of a pivot view.
package query

import (
	"net/url"
	"strings"

	"github.com/tabulata/tabulata/core/pivot"
)

// ViewState represents the parsed state of a pivot view URL.
type ViewState struct {
	// Base path (e.g., "/pivot")
	Path string

	Dataset  string            // the dataset being pivoted
	GroupBy  []string          // ordered row-hierarchy fields
	SplitBy  []string          // ordered cross-tab split fields
	Metrics  []pivot.Metric    // metric list (field plus aggregation)
	Filters  map[string]string // external equality filters (field -> value)
	Expanded []string          // expanded node ids
}

// NewViewState creates a ViewState from a URL.
func NewViewState(u *url.URL) *ViewState {
	state := &ViewState{
		Path:    u.Path,
		Filters: make(map[string]string),
	}

	q := u.Query()
	state.Dataset = q.Get("dataset")

	if grouped := q.Get("grouped"); grouped != "" {
		state.GroupBy = strings.Split(grouped, ",")
	}
	if split := q.Get("split"); split != "" {
		state.SplitBy = strings.Split(split, ",")
	}

	// metrics parameter format: field:aggregation,field (aggregation
	// defaults to SUM)
	if metricsStr := q.Get("metrics"); metricsStr != "" {
		for _, part := range strings.Split(metricsStr, ",") {
			if part == "" {
				continue
			}
			m := pivot.Metric{Field: part, Aggregation: pivot.SumAggregation}
			if colonIdx := strings.LastIndex(part, ":"); colonIdx != -1 {
				m.Field = part[:colonIdx]
				m.Aggregation = part[colonIdx+1:]
			}
			state.Metrics = append(state.Metrics, m)
		}
	}

	// one expanded parameter per node id; labels may contain commas, so the
	// ids cannot share a single comma-joined value
	if expanded, ok := q["expanded"]; ok {
		state.Expanded = append([]string(nil), expanded...)
	}

	// filter parameters (format: filter:fieldName=value)
	for key, values := range q {
		if strings.HasPrefix(key, "filter:") && len(values) > 0 {
			field := strings.TrimPrefix(key, "filter:")
			state.Filters[field] = values[0]
		}
	}

	return state
}

// Config returns the pivot configuration described by the view state.
func (s *ViewState) Config() pivot.Config {
	return pivot.Config{
		GroupBy: s.GroupBy,
		SplitBy: s.SplitBy,
		Metrics: s.Metrics,
	}
}

// IsExpanded reports whether a node id is in the expanded set.
func (s *ViewState) IsExpanded(id string) bool {
	for _, e := range s.Expanded {
		if e == id {
			return true
		}
	}
	return false
}

// WithExpanded returns a copy of the state with the node id added to (or
// removed from) the expanded set, for toggle links.
func (s *ViewState) WithExpanded(id string, expanded bool) *ViewState {
	clone := s.Clone()
	if expanded {
		if !clone.IsExpanded(id) {
			clone.Expanded = append(clone.Expanded, id)
		}
		return clone
	}
	kept := clone.Expanded[:0]
	for _, e := range clone.Expanded {
		if e != id {
			kept = append(kept, e)
		}
	}
	clone.Expanded = kept
	return clone
}

// Clone creates a deep copy of the ViewState.
func (s *ViewState) Clone() *ViewState {
	clone := &ViewState{
		Path:     s.Path,
		Dataset:  s.Dataset,
		GroupBy:  append([]string(nil), s.GroupBy...),
		SplitBy:  append([]string(nil), s.SplitBy...),
		Metrics:  append([]pivot.Metric(nil), s.Metrics...),
		Filters:  make(map[string]string, len(s.Filters)),
		Expanded: append([]string(nil), s.Expanded...),
	}
	for field, value := range s.Filters {
		clone.Filters[field] = value
	}
	return clone
}

// URL serializes the state back into a URL string.
func (s *ViewState) URL() string {
	q := url.Values{}
	if s.Dataset != "" {
		q.Set("dataset", s.Dataset)
	}
	if len(s.GroupBy) > 0 {
		q.Set("grouped", strings.Join(s.GroupBy, ","))
	}
	if len(s.SplitBy) > 0 {
		q.Set("split", strings.Join(s.SplitBy, ","))
	}
	if len(s.Metrics) > 0 {
		parts := make([]string, len(s.Metrics))
		for i, m := range s.Metrics {
			if m.Aggregation == "" || m.Aggregation == pivot.SumAggregation {
				parts[i] = m.Field
			} else {
				parts[i] = m.Field + ":" + m.Aggregation
			}
		}
		q.Set("metrics", strings.Join(parts, ","))
	}
	for _, id := range s.Expanded {
		q.Add("expanded", id)
	}
	for field, value := range s.Filters {
		q.Set("filter:"+field, value)
	}
	return s.Path + "?" + q.Encode()
}
