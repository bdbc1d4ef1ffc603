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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathRoundTrip(t *testing.T) {
	paths := [][]string{
		{"2023"},
		{"2023", "EU"},
		{"2023", "EU", "Retail"},
		{"value with spaces", "and,commas", "and_underscores"},
		{NotAvailable, ""},
		{""},
	}
	for _, p := range paths {
		got := DecodePath(EncodePath(p))
		if diff := cmp.Diff(p, got); diff != "" {
			t.Errorf("round trip mismatch for %v (-want +got):\n%s", p, diff)
		}
	}
}

func TestRootEncoding(t *testing.T) {
	assert.Equal(t, RootID, EncodePath(nil))
	assert.Nil(t, DecodePath(RootID))
	assert.Equal(t, 0, PathDepth(RootID))
}

// An empty dimension value is a legitimate label: its depth-1 id is the
// empty string, which must stay distinct from the root and decode back to
// the one-element path.
func TestEmptyDimensionValuePath(t *testing.T) {
	id := ChildID(RootID, "")
	assert.Equal(t, "", id)
	assert.NotEqual(t, RootID, id)
	assert.Equal(t, []string{""}, DecodePath(id))
	assert.Equal(t, 1, PathDepth(id))

	filters, err := DecodeFilters(id, []string{"Year", "Region"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Year": ""}, filters)

	child := ChildID(id, "EU")
	assert.Equal(t, EncodePath([]string{"", "EU"}), child)
	assert.Equal(t, []string{"", "EU"}, DecodePath(child))
}

func TestChildID(t *testing.T) {
	// level-0 children carry just their label, not the root sentinel
	id := ChildID(RootID, "2023")
	assert.Equal(t, "2023", id)
	id = ChildID(id, "EU")
	assert.Equal(t, EncodePath([]string{"2023", "EU"}), id)
	assert.Equal(t, 2, PathDepth(id))
}

func TestDecodeFilters(t *testing.T) {
	groupBy := []string{"Year", "Region", "Product"}

	filters, err := DecodeFilters(ChildID(ChildID(RootID, "2023"), "EU"), groupBy)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Year": "2023", "Region": "EU"}, filters)

	filters, err = DecodeFilters(RootID, groupBy)
	require.NoError(t, err)
	assert.Empty(t, filters)

	_, err = DecodeFilters(EncodePath([]string{"a", "b"}), []string{"Year"})
	assert.Error(t, err)
}
