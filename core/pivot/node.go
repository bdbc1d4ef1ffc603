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

// Node is one row of the pivot hierarchy. Expanded (UI-visible) and Fetched
// (data retrieved) are independent: collapsing a node never discards its
// already-fetched children.
type Node struct {
	// ID is the canonical path id (see EncodePath). Unique per path and
	// never recomputed once assigned.
	ID    string `json:"id"`
	Label string `json:"label"`
	// Depth is the hierarchy depth; the synthetic root is 0.
	Depth int `json:"depth"`
	// Values maps each ancestor group-by field (including this node's own
	// level) to its dimension value.
	Values map[string]string `json:"values,omitempty"`
	// Aggregates holds running sums per split signature; the TotalKey
	// bucket always carries the row totals across all splits, so collapsing
	// columns or reading grand totals never requires re-aggregation. Not
	// part of the wire shape; Cells is.
	Aggregates map[string]map[string]float64 `json:"-"`
	// Cells is the flattened form of Aggregates under the CellKey
	// convention; this is the shape the rendering layer addresses directly.
	Cells    map[string]float64 `json:"cells"`
	Children []*Node            `json:"children,omitempty"`

	Expanded bool `json:"expanded,omitempty"`
	Fetched  bool `json:"fetched,omitempty"`
	// HasMore reports whether deeper hierarchy levels exist below this node
	// (lazy mode only; full mode builds the complete tree up front).
	HasMore bool `json:"has_more,omitempty"`
}

// NewNode creates a node with empty aggregate state.
func NewNode(id, label string, depth int) *Node {
	return &Node{
		ID:         id,
		Label:      label,
		Depth:      depth,
		Values:     make(map[string]string),
		Aggregates: map[string]map[string]float64{TotalKey: {}},
	}
}

// Accumulate adds the row's metric values into the signature bucket and into
// the TotalKey bucket. Accumulation is plain summation, so it is commutative
// and associative up to floating-point tolerance.
func (n *Node) Accumulate(signature string, metrics []Metric, row Row) {
	total := n.Aggregates[TotalKey]
	var bucket map[string]float64
	if signature != TotalKey {
		bucket = n.Aggregates[signature]
		if bucket == nil {
			bucket = make(map[string]float64, len(metrics))
			n.Aggregates[signature] = bucket
		}
	}
	for _, m := range metrics {
		v := row.Metric(m.Field)
		total[m.Field] += v
		if bucket != nil {
			bucket[m.Field] += v
		}
	}
}

// Flatten materializes Cells from Aggregates for this node and all
// descendants.
func (n *Node) Flatten() {
	n.Cells = make(map[string]float64, len(n.Aggregates)*2)
	for sig, bucket := range n.Aggregates {
		for field, v := range bucket {
			n.Cells[CellKey(sig, field)] = v
		}
	}
	for _, c := range n.Children {
		c.Flatten()
	}
}

// Clone returns a shallow copy of the node with its own Children slice and
// Values map. Aggregates and Cells are shared; callers replacing aggregate
// state must assign fresh maps. Used for copy-on-write tree patches.
func (n *Node) Clone() *Node {
	out := *n
	out.Children = make([]*Node, len(n.Children))
	copy(out.Children, n.Children)
	out.Values = make(map[string]string, len(n.Values))
	for k, v := range n.Values {
		out.Values[k] = v
	}
	return &out
}
