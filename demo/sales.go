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

// Package demo ships a small embedded sales dataset to run the server
// without any external data source.
package demo

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/tabulata/tabulata/core/pivot"
	"github.com/tabulata/tabulata/core/server"
	"github.com/tabulata/tabulata/datasources"
)

//go:embed data/sales.csv
var salesCSV string

// SalesDataset loads the embedded sales data as a server dataset. The default
// view drills Year, Quarter and Country split by Channel.
func SalesDataset() (*server.Dataset, error) {
	rows, columns, err := datasources.LoadCSV(strings.NewReader(salesCSV))
	if err != nil {
		return nil, fmt.Errorf("loading embedded sales data: %w", err)
	}
	def := pivot.Config{
		GroupBy: []string{"Year", "Quarter", "Country"},
		SplitBy: []string{"Channel"},
		Metrics: []pivot.Metric{
			{Name: "Sales", Field: "Sales", Aggregation: pivot.SumAggregation, DisplayType: "currency"},
			{Name: "Units", Field: "Units", Aggregation: pivot.SumAggregation},
		},
	}
	return server.NewDataset("sales", rows, columns, def), nil
}
