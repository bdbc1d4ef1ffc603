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
	"fmt"
	"strings"
)

// RootID is the fixed sentinel id of the synthetic root node. It starts with
// the reserved separator, so it can never equal an encoded path (paths join
// plain dimension values and therefore never start with the separator).
const RootID = Separator + "root"

// EncodePath canonicalizes an ordered list of dimension values into a stable
// node id by joining with the reserved separator. An empty list encodes the
// root. Values containing the separator are not guarded against; callers own
// that assumption.
func EncodePath(values []string) string {
	if len(values) == 0 {
		return RootID
	}
	return strings.Join(values, Separator)
}

// DecodePath splits a node id back into its ancestor dimension values.
// The root decodes to nil. An empty id is not the root: it is the depth-1
// path of a single empty dimension value, so it splits like any other id.
func DecodePath(id string) []string {
	if id == RootID {
		return nil
	}
	return strings.Split(id, Separator)
}

// PathDepth returns the hierarchy depth of a node id (root is 0).
func PathDepth(id string) int {
	return len(DecodePath(id))
}

// ChildID derives a child's id by appending its label to the parent id.
// Once created, ids are never recomputed; lazily attached children always
// derive from the parent id so partial and full trees agree on identity.
func ChildID(parentID, label string) string {
	if parentID == RootID {
		return label
	}
	return parentID + Separator + label
}

// DecodeFilters reconstructs the equality-filter map of a node id by zipping
// the decoded values against the leading group-by fields. A path deeper than
// the group-by list cannot belong to the current configuration.
func DecodeFilters(id string, groupBy []string) (map[string]string, error) {
	values := DecodePath(id)
	if len(values) > len(groupBy) {
		return nil, fmt.Errorf("path depth %d exceeds group-by depth %d", len(values), len(groupBy))
	}
	filters := make(map[string]string, len(values))
	for i, v := range values {
		filters[groupBy[i]] = v
	}
	return filters, nil
}
