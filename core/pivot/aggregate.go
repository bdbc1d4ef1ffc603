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

import "strconv"

// Aggregate groups and sums a complete flat row batch into a pivot tree in a
// single pass. This is "import everything" mode: the whole tree is rebuilt
// whenever the row batch or the configuration changes.
//
// For every row, the engine computes the row's split signature, walks the
// group-by path creating nodes on first visit, and accumulates the metric
// values at every ancestor and at the synthetic root. Child order preserves
// first-seen order of dimension values; split columns are sorted
// lexicographically. The operation cannot fail on well-typed input: numeric
// coercion defaults bad values to zero and missing dimensions map to a
// sentinel label.
func Aggregate(rows []Row, cfg Config) *Result {
	root := NewNode(RootID, RootLabel, 0)
	root.Fetched = true
	root.Expanded = true

	sigs := NewSignatureIndex()
	widths := NewWidthEstimator()
	// per-node child lookup, kept out of the Node itself
	byLabel := map[*Node]map[string]*Node{root: {}}

	for _, row := range rows {
		sig := SignatureOf(row, cfg.SplitBy)
		sigs.Observe(sig)
		root.Accumulate(sig, cfg.Metrics, row)

		parent := root
		for _, field := range cfg.GroupBy {
			label := row.Dimension(field)
			child := byLabel[parent][label]
			if child == nil {
				child = NewNode(ChildID(parent.ID, label), label, parent.Depth+1)
				for k, v := range parent.Values {
					child.Values[k] = v
				}
				child.Values[field] = label
				child.Fetched = true
				parent.Children = append(parent.Children, child)
				byLabel[parent][label] = child
				byLabel[child] = map[string]*Node{}
				widths.ObserveLabel(child.Depth, label)
			}
			child.Accumulate(sig, cfg.Metrics, row)
			parent = child
		}
	}

	root.Flatten()
	observeTreeWidths(widths, root, cfg.Metrics, sigs)

	res := &Result{
		Tree:         root.Children,
		SplitColumns: sigs.Signatures(),
		ColumnWidths: widths.Widths(),
	}
	switch {
	case len(rows) == 0:
		res.Tree = nil
	case len(cfg.GroupBy) == 0:
		// no grouping: the grand-total row is the sole result row
		res.Tree = []*Node{root}
	}
	res.GrandTotal = grandTotalRows(root, cfg, res.SplitColumns)
	return res
}

// grandTotalRows synthesizes the footer rows from the root aggregates, one
// row per split signature (or a single row when no split is active), shaped
// like the group-by-less response of the aggregation service.
func grandTotalRows(root *Node, cfg Config, splitColumns []string) []Row {
	if len(root.Aggregates[TotalKey]) == 0 {
		return nil
	}
	signatures := splitColumns
	if len(signatures) == 0 {
		signatures = []string{TotalKey}
	}
	out := make([]Row, 0, len(signatures))
	for _, sig := range signatures {
		bucket := root.Aggregates[sig]
		if bucket == nil {
			continue
		}
		row := Row{}
		for i, v := range DecodePath(sig) {
			if i < len(cfg.SplitBy) {
				row[cfg.SplitBy[i]] = v
			}
		}
		for _, m := range cfg.Metrics {
			row[m.Field] = bucket[m.Field]
		}
		out = append(out, row)
	}
	return out
}

// observeTreeWidths feeds the estimator with header labels and rendered cell
// lengths. This walks the already-built node arena, not the row batch.
func observeTreeWidths(w *WidthEstimator, root *Node, metrics []Metric, sigs *SignatureIndex) {
	signatures := append(sigs.Signatures(), TotalKey)
	for _, sig := range signatures {
		for _, m := range metrics {
			w.ObserveCell(CellKey(sig, m.Field), m.Label())
		}
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		for key, v := range n.Cells {
			w.ObserveCell(key, strconv.FormatFloat(v, 'f', -1, 64))
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
}
