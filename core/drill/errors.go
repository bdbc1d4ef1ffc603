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

import "fmt"

// SchemaLoadError means the initial root level could not be loaded. Fatal to
// the view; the caller should offer a retry affordance.
type SchemaLoadError struct {
	Err error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("pivot schema load failed: %v", e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// LevelLoadError means one drill-down level's fetch failed. Node-local: the
// node stays collapsed and unfetched, siblings remain usable, and a
// subsequent expand retries.
type LevelLoadError struct {
	NodeID string
	Depth  int
	Err    error
}

func (e *LevelLoadError) Error() string {
	return fmt.Sprintf("level load failed for node %q (depth %d): %v", e.NodeID, e.Depth, e.Err)
}

func (e *LevelLoadError) Unwrap() error { return e.Err }

// GrandTotalError means the footer fetch failed. Non-fatal: the footer is
// simply omitted.
type GrandTotalError struct {
	Err error
}

func (e *GrandTotalError) Error() string {
	return fmt.Sprintf("grand total fetch failed: %v", e.Err)
}

func (e *GrandTotalError) Unwrap() error { return e.Err }
