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

package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabulata/tabulata/core/pivot"
)

func TestSalesDataset(t *testing.T) {
	ds, err := SalesDataset()
	require.NoError(t, err)

	require.NoError(t, ds.Default.Validate())
	assert.NotEmpty(t, ds.Columns)
	assert.NotEmpty(t, ds.Service().Rows())

	res := pivot.Aggregate(ds.Service().Rows(), ds.Default)
	require.Len(t, res.Tree, 2) // 2023 and 2024
	assert.Equal(t, []string{"Store", "Web"}, res.SplitColumns)
}
