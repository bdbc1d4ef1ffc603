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

package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabulata/tabulata/core/pivot"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNewViewState(t *testing.T) {
	u := mustParse(t, "/pivot?dataset=sales&grouped=Year,Region&split=Channel&metrics=Sales:SUM,Units&filter:Region=EU")
	s := NewViewState(u)

	assert.Equal(t, "sales", s.Dataset)
	assert.Equal(t, []string{"Year", "Region"}, s.GroupBy)
	assert.Equal(t, []string{"Channel"}, s.SplitBy)
	require.Len(t, s.Metrics, 2)
	assert.Equal(t, pivot.Metric{Field: "Sales", Aggregation: pivot.SumAggregation}, s.Metrics[0])
	assert.Equal(t, pivot.Metric{Field: "Units", Aggregation: pivot.SumAggregation}, s.Metrics[1])
	assert.Equal(t, map[string]string{"Region": "EU"}, s.Filters)
}

func TestViewStateConfig(t *testing.T) {
	s := NewViewState(mustParse(t, "/pivot?grouped=Year&metrics=Sales"))
	cfg := s.Config()
	assert.Equal(t, []string{"Year"}, cfg.GroupBy)
	require.NoError(t, cfg.Validate())
}

func TestViewStateExpandedRoundTrip(t *testing.T) {
	s := NewViewState(mustParse(t, "/pivot?dataset=sales&grouped=Year&metrics=Sales"))
	id := pivot.ChildID(pivot.RootID, "2023")

	expanded := s.WithExpanded(id, true)
	assert.True(t, expanded.IsExpanded(id))
	assert.False(t, s.IsExpanded(id), "original state untouched")

	// the id survives URL encoding, separator included
	parsed := NewViewState(mustParse(t, expanded.URL()))
	assert.True(t, parsed.IsExpanded(id))

	collapsed := parsed.WithExpanded(id, false)
	assert.False(t, collapsed.IsExpanded(id))
}

func TestViewStateExpandedLabelsWithCommas(t *testing.T) {
	s := NewViewState(mustParse(t, "/pivot?dataset=sales&grouped=Company&metrics=Sales"))
	first := pivot.ChildID(pivot.RootID, "Acme, Inc.")
	second := pivot.ChildID(pivot.RootID, "Globex")

	expanded := s.WithExpanded(first, true).WithExpanded(second, true)
	parsed := NewViewState(mustParse(t, expanded.URL()))
	assert.True(t, parsed.IsExpanded(first), "comma label survives the URL")
	assert.True(t, parsed.IsExpanded(second))
	assert.Len(t, parsed.Expanded, 2)
}

func TestViewStateURLRoundTrip(t *testing.T) {
	s := NewViewState(mustParse(t, "/pivot?dataset=sales&grouped=Year,Region&split=Channel&metrics=Sales&filter:Year=2023"))
	parsed := NewViewState(mustParse(t, s.URL()))
	assert.Equal(t, s.Dataset, parsed.Dataset)
	assert.Equal(t, s.GroupBy, parsed.GroupBy)
	assert.Equal(t, s.SplitBy, parsed.SplitBy)
	assert.Equal(t, s.Metrics, parsed.Metrics)
	assert.Equal(t, s.Filters, parsed.Filters)
}
