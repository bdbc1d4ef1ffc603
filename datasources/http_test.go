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

package datasources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabulata/tabulata/core/drill"
	"github.com/tabulata/tabulata/core/pivot"
)

func TestHTTPServiceRoundTrip(t *testing.T) {
	var gotReq drill.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode([]pivot.Row{{"Year": "2023", "Sales": 150.0}})
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL)
	rows, err := svc.FetchAggregate(context.Background(), drill.Request{
		GroupBy: []string{"Year"},
		Metrics: []drill.MetricSpec{{Field: "Sales", Aggregation: pivot.SumAggregation}},
		Filters: map[string]drill.FilterValue{},
		Sort:    []drill.SortSpec{},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 150.0, rows[0].Metric("Sales"))

	// wire field names follow the service contract
	assert.Equal(t, []string{"Year"}, gotReq.GroupBy)
	assert.Nil(t, gotReq.SplitBy)
}

func TestHTTPServiceRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]pivot.Row{{"Sales": 1.0}})
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, WithMaxRetries(5))
	rows, err := svc.FetchAggregate(context.Background(), drill.Request{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(3), calls.Load())
}

func TestHTTPServiceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, WithMaxRetries(5))
	_, err := svc.FetchAggregate(context.Background(), drill.Request{})
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestHTTPServiceRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewHTTPService(srv.URL, WithMaxRetries(10))
	_, err := svc.FetchAggregate(ctx, drill.Request{})
	assert.Error(t, err)
}
