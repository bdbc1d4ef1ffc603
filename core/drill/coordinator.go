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

package drill

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tabulata/tabulata/core/pivot"
)

// Coordinator builds a pivot tree one hierarchy level at a time. It keeps a
// partial tree whose nodes may be unfetched, a per-node in-flight set, the
// running union of observed split signatures, and an independently fetched
// grand-total row set.
//
// Every tree patch goes through a node registry (id to node) with
// copy-on-write replacement along the ancestor chain, so a concurrent
// Snapshot observes either the pre- or post-attachment tree, never a
// half-attached node. A generation counter captured at fetch issue time and
// checked before applying structurally rejects stale responses after a
// filter or configuration change.
type Coordinator struct {
	fetcher Fetcher
	logger  *zap.Logger

	mu      sync.Mutex
	cfg     pivot.Config
	base    map[string]FilterValue // report-level filters
	global  map[string]FilterValue // external filters
	gen     uint64
	root    *pivot.Node
	nodes   map[string]*pivot.Node
	loading map[string]struct{}
	sigs    *pivot.SignatureIndex
	widths  *pivot.WidthEstimator
	total   []pivot.Row
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithBaseFilters sets the report-level filters merged into every request.
func WithBaseFilters(f map[string]FilterValue) Option {
	return func(c *Coordinator) { c.base = f }
}

// NewCoordinator creates a coordinator for one pivot configuration. Lazy mode
// is authoritative whenever the group-by list is non-empty; with no grouping
// callers use pivot.Aggregate instead, so an empty group-by is rejected here.
// The wire contract carries at most one split field per request, so multi-
// field splits are rejected as well.
func NewCoordinator(fetcher Fetcher, cfg pivot.Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.GroupBy) == 0 {
		return nil, fmt.Errorf("lazy drill requires at least one group-by field")
	}
	if len(cfg.SplitBy) > 1 {
		return nil, fmt.Errorf("lazy drill supports at most one split field, got %d", len(cfg.SplitBy))
	}
	c := &Coordinator{
		fetcher: fetcher,
		logger:  zap.NewNop(),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	return c, nil
}

// resetLocked discards all fetched and loading state and bumps the
// generation, so any in-flight result is dropped on arrival.
func (c *Coordinator) resetLocked() {
	c.gen++
	root := pivot.NewNode(pivot.RootID, pivot.RootLabel, 0)
	root.HasMore = true
	c.root = root
	c.nodes = map[string]*pivot.Node{pivot.RootID: root}
	c.loading = make(map[string]struct{})
	c.sigs = pivot.NewSignatureIndex()
	c.widths = pivot.NewWidthEstimator()
	c.total = nil
}

// Start discards any previous state and fetches the root level and the grand
// total concurrently. A root-level failure is fatal (SchemaLoadError); a
// grand-total failure only omits the footer.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.resetLocked()
	gen := c.gen
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.expand(ctx, pivot.RootID, gen); err != nil {
			return &SchemaLoadError{Err: err}
		}
		return nil
	})
	g.Go(func() error {
		if err := c.loadGrandTotal(ctx, gen); err != nil {
			c.logger.Warn("grand total fetch failed, footer omitted", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

// Expand reveals a node's children, fetching them first if needed. Expanding
// an already-fetched node is a no-op beyond the visual flag, and a second
// call on a node whose load is still in flight is ignored, so expansion is
// idempotent: no duplicate fetches, no duplicate children. A failed load
// leaves the node collapsed and unfetched; calling Expand again retries.
func (c *Coordinator) Expand(ctx context.Context, id string) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.expand(ctx, id, gen)
}

func (c *Coordinator) expand(ctx context.Context, id string, gen uint64) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	node, ok := c.nodes[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown node %q", id)
	}
	if node.Fetched || !node.HasMore {
		if !node.Expanded {
			c.patchLocked(id, func(n *pivot.Node) { n.Expanded = true })
		}
		c.mu.Unlock()
		return nil
	}
	if _, busy := c.loading[id]; busy {
		c.mu.Unlock()
		return nil
	}
	c.loading[id] = struct{}{}
	depth := node.Depth
	field := c.cfg.GroupBy[depth]
	split := c.splitFieldLocked()
	metrics := metricSpecs(c.cfg.Metrics)
	filters, err := c.requestFiltersLocked(id)
	c.mu.Unlock()
	if err != nil {
		c.finishLoad(id, gen)
		return &LevelLoadError{NodeID: id, Depth: depth, Err: err}
	}

	req := Request{
		GroupBy: []string{field},
		SplitBy: split,
		Metrics: metrics,
		Filters: filters,
		Sort:    []SortSpec{},
	}
	rows, err := c.fetcher.FetchAggregate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// stale: the tree this load was issued against no longer exists
		c.logger.Debug("discarding stale level load", zap.String("node", id))
		return nil
	}
	delete(c.loading, id)
	if err != nil {
		return &LevelLoadError{NodeID: id, Depth: depth, Err: err}
	}

	children := c.buildChildrenLocked(id, depth, field, rows)
	c.patchLocked(id, func(n *pivot.Node) {
		n.Children = children
		n.Fetched = true
		n.Expanded = true
	})
	for _, child := range children {
		c.nodes[child.ID] = child
	}
	c.logger.Debug("level loaded",
		zap.String("node", id),
		zap.Int("depth", depth),
		zap.Int("rows", len(rows)),
		zap.Int("children", len(children)))
	return nil
}

// finishLoad clears the in-flight marker if the generation still matches.
func (c *Coordinator) finishLoad(id string, gen uint64) {
	c.mu.Lock()
	if gen == c.gen {
		delete(c.loading, id)
	}
	c.mu.Unlock()
}

// buildChildrenLocked groups a level response into immediate children with
// the same splitting logic as full aggregation, but for a single group field.
// With an active split the response carries one row per (value, signature)
// pair; rows accumulate into one child per first-seen dimension value.
func (c *Coordinator) buildChildrenLocked(parentID string, depth int, field string, rows []pivot.Row) []*pivot.Node {
	parent := c.nodes[parentID]
	var children []*pivot.Node
	byLabel := make(map[string]*pivot.Node)
	for _, row := range rows {
		label := row.Dimension(field)
		sig := pivot.SignatureOf(row, c.cfg.SplitBy)
		c.sigs.Observe(sig)

		child := byLabel[label]
		if child == nil {
			child = pivot.NewNode(pivot.ChildID(parentID, label), label, depth+1)
			for k, v := range parent.Values {
				child.Values[k] = v
			}
			child.Values[field] = label
			child.HasMore = depth+1 < len(c.cfg.GroupBy)
			byLabel[label] = child
			children = append(children, child)
			c.widths.ObserveLabel(child.Depth, label)
		}
		child.Accumulate(sig, c.cfg.Metrics, row)
	}
	for _, child := range children {
		child.Flatten()
		for key, v := range child.Cells {
			c.widths.ObserveCell(key, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return children
}

// patchLocked replaces the node with the given id by a mutated copy,
// cloning every ancestor down from the root so concurrent snapshot readers
// keep a consistent tree. The registry is updated for every cloned node.
func (c *Coordinator) patchLocked(id string, mutate func(n *pivot.Node)) {
	cur := c.root.Clone()
	c.root = cur
	c.nodes[pivot.RootID] = cur

	if id != pivot.RootID {
		values := pivot.DecodePath(id)
		ancestorID := pivot.RootID
		for _, v := range values {
			ancestorID = pivot.ChildID(ancestorID, v)
			for i, child := range cur.Children {
				if child.ID == ancestorID {
					clone := child.Clone()
					cur.Children[i] = clone
					c.nodes[ancestorID] = clone
					cur = clone
					break
				}
			}
		}
		if cur.ID != id {
			// node vanished from the current tree; nothing to patch
			return
		}
	}
	mutate(cur)
}

// Collapse hides a node's children without discarding fetched state.
func (c *Coordinator) Collapse(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[id]; !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	c.patchLocked(id, func(n *pivot.Node) { n.Expanded = false })
	return nil
}

// loadGrandTotal issues the group-by-less request with the same filters,
// splits and metrics. The response rows are retained verbatim for the
// footer; with an active split there may be one row per signature.
func (c *Coordinator) loadGrandTotal(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	filters := c.mergedFiltersLocked()
	req := Request{
		GroupBy: []string{},
		SplitBy: c.splitFieldLocked(),
		Metrics: metricSpecs(c.cfg.Metrics),
		Filters: filters,
		Sort:    []SortSpec{},
	}
	splitBy := c.cfg.SplitBy
	metrics := c.cfg.Metrics
	c.mu.Unlock()

	rows, err := c.fetcher.FetchAggregate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	if err != nil {
		c.total = nil
		return &GrandTotalError{Err: err}
	}
	c.total = rows
	for _, row := range rows {
		sig := pivot.SignatureOf(row, splitBy)
		c.sigs.Observe(sig)
		for _, m := range metrics {
			c.widths.ObserveCell(pivot.CellKey(sig, m.Field), strconv.FormatFloat(row.Metric(m.Field), 'f', -1, 64))
		}
	}
	return nil
}

// SetGlobalFilters replaces the external filter set. The entire partial tree
// is invalidated and refetched from the root; late results from the previous
// filter set are discarded by the generation bump inside Start.
func (c *Coordinator) SetGlobalFilters(ctx context.Context, filters map[string]FilterValue) error {
	c.mu.Lock()
	c.global = filters
	c.mu.Unlock()
	return c.Start(ctx)
}

// Reconfigure replaces the pivot configuration and rebuilds from scratch.
func (c *Coordinator) Reconfigure(ctx context.Context, cfg pivot.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.GroupBy) == 0 {
		return fmt.Errorf("lazy drill requires at least one group-by field")
	}
	if len(cfg.SplitBy) > 1 {
		return fmt.Errorf("lazy drill supports at most one split field, got %d", len(cfg.SplitBy))
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return c.Start(ctx)
}

// Close invalidates the coordinator; any in-flight result is silently
// dropped instead of being applied to a torn-down view.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.gen++
	c.loading = make(map[string]struct{})
	c.mu.Unlock()
}

// Snapshot returns the current engine output. The returned tree is a
// consistent state: later attaches replace nodes copy-on-write rather than
// mutating them in place.
func (c *Coordinator) Snapshot() *pivot.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := &pivot.Result{
		Tree:         c.root.Children,
		SplitColumns: c.sigs.Signatures(),
		ColumnWidths: c.widths.Widths(),
	}
	if c.total != nil {
		res.GrandTotal = make([]pivot.Row, len(c.total))
		copy(res.GrandTotal, c.total)
	}
	return res
}

// Loading reports whether the node's level fetch is in flight.
func (c *Coordinator) Loading(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.loading[id]
	return ok
}

func (c *Coordinator) splitFieldLocked() *string {
	if len(c.cfg.SplitBy) == 0 {
		return nil
	}
	s := c.cfg.SplitBy[0]
	return &s
}

func (c *Coordinator) mergedFiltersLocked() map[string]FilterValue {
	out := make(map[string]FilterValue, len(c.base)+len(c.global))
	for k, v := range c.base {
		out[k] = v
	}
	for k, v := range c.global {
		out[k] = v
	}
	return out
}

// requestFiltersLocked merges report-level and external filters with the
// equality filters decoded from the node's ancestor path. Ancestor values
// win: a drill into Year=2023 must constrain to 2023 regardless of an
// external Year filter.
func (c *Coordinator) requestFiltersLocked(parentID string) (map[string]FilterValue, error) {
	out := c.mergedFiltersLocked()
	ancestors, err := pivot.DecodeFilters(parentID, c.cfg.GroupBy)
	if err != nil {
		return nil, err
	}
	for field, value := range ancestors {
		out[field] = Equals(value)
	}
	return out, nil
}
