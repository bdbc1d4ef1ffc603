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

import "sort"

// SignatureOf computes the row's split signature: its ordered split-field
// values joined by the reserved separator. Rows without active splits fall
// into the TotalKey bucket.
func SignatureOf(row Row, splitBy []string) string {
	if len(splitBy) == 0 {
		return TotalKey
	}
	parts := make([]string, len(splitBy))
	for i, f := range splitBy {
		parts[i] = row.Dimension(f)
	}
	return EncodePath(parts)
}

// CellKey is the flattened-cell key convention the rendering layer expects:
// the bare metric field for the Total bucket, signature_field otherwise.
func CellKey(signature, metricField string) string {
	if signature == TotalKey {
		return metricField
	}
	return signature + "_" + metricField
}

// SignatureIndex accumulates the distinct split signatures observed so far
// and derives the stable, globally sorted column order from them. In lazy
// mode the schema is learned incrementally, one level fetch at a time, so the
// index is a running union rather than a per-tree computation.
type SignatureIndex struct {
	seen   map[string]struct{}
	sorted []string
	dirty  bool
}

// NewSignatureIndex creates an empty index.
func NewSignatureIndex() *SignatureIndex {
	return &SignatureIndex{seen: make(map[string]struct{})}
}

// Observe records one signature. The TotalKey bucket is not a column group
// and is ignored.
func (x *SignatureIndex) Observe(signature string) {
	if signature == TotalKey {
		return
	}
	if _, ok := x.seen[signature]; ok {
		return
	}
	x.seen[signature] = struct{}{}
	x.dirty = true
}

// Signatures returns the union of observed signatures, sorted
// lexicographically for stable column ordering across the whole tree.
func (x *SignatureIndex) Signatures() []string {
	if x.dirty {
		x.sorted = x.sorted[:0]
		for s := range x.seen {
			x.sorted = append(x.sorted, s)
		}
		sort.Strings(x.sorted)
		x.dirty = false
	}
	out := make([]string, len(x.sorted))
	copy(out, x.sorted)
	return out
}

// Len returns the number of distinct signatures observed.
func (x *SignatureIndex) Len() int {
	return len(x.seen)
}

// Column is one leaf (metric) column of the cross-tab header.
type Column struct {
	Key   string // generated cell key, signature_field or bare field
	Label string // metric display name
}

// ColumnGroup is one header group: either a split value wrapping deeper
// groups, or (at the innermost level) a split value wrapping metric columns.
type ColumnGroup struct {
	Label    string
	Children []ColumnGroup
	Columns  []Column
}

// ColumnGroups builds the nested column-group shape consumers render against:
// one outer group per first-level split value, nested per further split
// level, with one leaf column per metric inside the innermost groups. With a
// single split level the result is one flat level of groups; with no observed
// signatures it degenerates to the plain metric list in a single anonymous
// group.
func (x *SignatureIndex) ColumnGroups(metrics []Metric) []ColumnGroup {
	sigs := x.Signatures()
	if len(sigs) == 0 {
		return []ColumnGroup{{Columns: metricColumns(TotalKey, metrics)}}
	}
	return buildGroups(sigs, 0, metrics)
}

// buildGroups nests one level of split values. sigs is sorted, so equal
// prefixes are adjacent and each group's signatures form one run.
func buildGroups(sigs []string, level int, metrics []Metric) []ColumnGroup {
	var groups []ColumnGroup
	i := 0
	for i < len(sigs) {
		values := DecodePath(sigs[i])
		value := values[level]
		if level+1 == len(values) {
			// innermost level: one group per signature, metric leaf columns
			groups = append(groups, ColumnGroup{
				Label:   value,
				Columns: metricColumns(sigs[i], metrics),
			})
			i++
			continue
		}
		// consume the run sharing this prefix value
		run := i
		for run < len(sigs) && DecodePath(sigs[run])[level] == value {
			run++
		}
		groups = append(groups, ColumnGroup{
			Label:    value,
			Children: buildGroups(sigs[i:run], level+1, metrics),
		})
		i = run
	}
	return groups
}

func metricColumns(signature string, metrics []Metric) []Column {
	cols := make([]Column, 0, len(metrics))
	for _, m := range metrics {
		cols = append(cols, Column{Key: CellKey(signature, m.Field), Label: m.Label()})
	}
	return cols
}
