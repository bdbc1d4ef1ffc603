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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidthsClampToBounds(t *testing.T) {
	e := NewWidthEstimator()
	e.ObserveCell("tiny", "1")
	e.ObserveCell("huge", strings.Repeat("9", 200))
	e.ObserveLabel(1, "x")

	w := e.Widths()
	assert.Equal(t, metricMin, w["tiny"])
	assert.Equal(t, metricMax, w["huge"])
	assert.Equal(t, hierarchyMin, w[HierarchyColumn])
}

func TestWidthsTrackMaxPerKey(t *testing.T) {
	e := NewWidthEstimator()
	e.ObserveCell("Sales", "12")
	e.ObserveCell("Sales", "1234567890123")
	e.ObserveCell("Sales", "5")

	w := e.Widths()
	assert.Equal(t, clampWidth(13*charWidth+metricPadding, metricMin, metricMax), w["Sales"])
}

func TestWidthsDeeperLabelsGetWider(t *testing.T) {
	shallow := NewWidthEstimator()
	shallow.ObserveLabel(1, strings.Repeat("a", 30))

	deep := NewWidthEstimator()
	deep.ObserveLabel(4, strings.Repeat("a", 30))

	assert.Greater(t, deep.Widths()[HierarchyColumn], shallow.Widths()[HierarchyColumn])
}
