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

// Package rendering turns pivot view models into HTML.
package rendering

import (
	"embed"
	"io"

	"github.com/google/safehtml/template"

	"github.com/tabulata/tabulata/core/views"
)

//go:embed templates/*
var templateFS embed.FS

// PivotRenderer renders pivot view models to HTML.
type PivotRenderer struct {
	pivotTemplate *template.Template
}

// NewPivotRenderer parses the embedded templates.
func NewPivotRenderer() (*PivotRenderer, error) {
	trustedFS := template.TrustedFSFromEmbed(templateFS)

	pivotTemplate, err := template.New("pivot.html").ParseFS(trustedFS, "templates/pivot.html")
	if err != nil {
		return nil, err
	}

	return &PivotRenderer{pivotTemplate: pivotTemplate}, nil
}

// Render renders a PivotViewModel to the provided writer.
func (r *PivotRenderer) Render(w io.Writer, vm views.PivotViewModel) error {
	return r.pivotTemplate.Execute(w, vm)
}
