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

// Package server exposes the pivot engine over HTTP: a JSON aggregation API
// matching the external-service contract, a schema endpoint, and a server-side
// rendered debug page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tabulata/tabulata/core/drill"
	"github.com/tabulata/tabulata/core/pivot"
	"github.com/tabulata/tabulata/core/query"
	"github.com/tabulata/tabulata/core/rendering"
	"github.com/tabulata/tabulata/core/views"
	"github.com/tabulata/tabulata/datasources"
)

// Dataset is one named flat row batch the server can pivot, with its column
// schema and the default configuration the debug page starts from.
type Dataset struct {
	Name    string
	Columns []datasources.ColumnInfo
	Default pivot.Config

	service *datasources.MemoryService
}

// NewDataset wraps a row batch in an in-process aggregation service.
func NewDataset(name string, rows []pivot.Row, columns []datasources.ColumnInfo, def pivot.Config) *Dataset {
	return &Dataset{
		Name:    name,
		Columns: columns,
		Default: def,
		service: datasources.NewMemoryService(rows),
	}
}

// Service returns the dataset's aggregation service.
func (d *Dataset) Service() *datasources.MemoryService {
	return d.service
}

type serverMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	levelErrs prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) serverMetrics {
	factory := promauto.With(reg)
	return serverMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabulata_requests_total",
			Help: "HTTP requests served, by handler and status code.",
		}, []string{"handler", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabulata_request_duration_seconds",
			Help:    "HTTP request latency, by handler.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
		levelErrs: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabulata_level_load_errors_total",
			Help: "Aggregation requests that failed.",
		}),
	}
}

// Server is the HTTP front of the pivot engine.
type Server struct {
	logger   *zap.Logger
	datasets map[string]*Dataset
	order    []string
	renderer *rendering.PivotRenderer
	registry *prometheus.Registry
	metrics  serverMetrics
}

// NewServer creates a server over the given datasets.
func NewServer(logger *zap.Logger, datasets ...*Dataset) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("server requires at least one dataset")
	}
	renderer, err := rendering.NewPivotRenderer()
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		logger:   logger,
		datasets: make(map[string]*Dataset, len(datasets)),
		renderer: renderer,
		registry: registry,
		metrics:  newServerMetrics(registry),
	}
	for _, d := range datasets {
		if _, ok := s.datasets[d.Name]; ok {
			return nil, fmt.Errorf("duplicate dataset %q", d.Name)
		}
		s.datasets[d.Name] = d
		s.order = append(s.order, d.Name)
	}
	return s, nil
}

// Handler returns the routed handler with CORS and observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/pivot", s.instrument("pivot", s.requirePost(s.handleFullPivot)))
	mux.Handle("/api/pivot/level", s.instrument("level", s.requirePost(s.handleLevel)))
	mux.Handle("/api/pivot/total", s.instrument("total", s.requirePost(s.handleTotal)))
	mux.Handle("/api/pivot/schema", s.instrument("schema", http.HandlerFunc(s.handleSchema)))
	mux.Handle("/pivot", s.instrument("page", http.HandlerFunc(s.handlePivotPage)))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return cors.AllowAll().Handler(mux)
}

func (s *Server) requirePost(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
			return
		}
		next(w, r)
	})
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		s.metrics.requests.WithLabelValues(name, fmt.Sprintf("%d", rec.status)).Inc()
		s.metrics.duration.WithLabelValues(name).Observe(elapsed.Seconds())
		s.logger.Debug("request served",
			zap.String("handler", name),
			zap.String("request_id", requestID),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
	})
}

// pivotRequest is the body of the full-mode endpoint: a pivot configuration
// over a named dataset, with optional external filters.
type pivotRequest struct {
	Dataset string                       `json:"dataset,omitempty"`
	GroupBy []string                     `json:"group_by"`
	SplitBy []string                     `json:"split_by,omitempty"`
	Metrics []drill.MetricSpec           `json:"metrics"`
	Filters map[string]drill.FilterValue `json:"filters,omitempty"`
}

func (p pivotRequest) config() pivot.Config {
	cfg := pivot.Config{GroupBy: p.GroupBy, SplitBy: p.SplitBy}
	for _, m := range p.Metrics {
		cfg.Metrics = append(cfg.Metrics, pivot.Metric{Name: m.Name, Field: m.Field, Aggregation: m.Aggregation})
	}
	return cfg
}

func (s *Server) handleFullPivot(w http.ResponseWriter, r *http.Request) {
	var req pivotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	dataset, err := s.datasetFor(req.Dataset)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	cfg := req.config()
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := filterRows(dataset.service.Rows(), req.Filters)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pivot.Aggregate(rows, cfg))
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, false)
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, true)
}

// serveAggregate answers one aggregation request against a dataset. The total
// variant forces an empty group_by regardless of the request body.
func (s *Server) serveAggregate(w http.ResponseWriter, r *http.Request, grandTotal bool) {
	var req drill.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	dataset, err := s.datasetFor(r.URL.Query().Get("dataset"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if grandTotal {
		req.GroupBy = nil
	}
	rows, err := dataset.service.FetchAggregate(r.Context(), req)
	if err != nil {
		s.metrics.levelErrs.Inc()
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if rows == nil {
		rows = []pivot.Row{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// schemaResponse describes a dataset to clients: its columns and the default
// pivot configuration.
type schemaResponse struct {
	Name    string                   `json:"name"`
	Columns []datasources.ColumnInfo `json:"columns"`
	GroupBy []string                 `json:"group_by"`
	SplitBy []string                 `json:"split_by,omitempty"`
	Metrics []drill.MetricSpec       `json:"metrics"`
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	dataset, err := s.datasetFor(r.URL.Query().Get("dataset"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	resp := schemaResponse{
		Name:    dataset.Name,
		Columns: dataset.Columns,
		GroupBy: dataset.Default.GroupBy,
		SplitBy: dataset.Default.SplitBy,
	}
	for _, m := range dataset.Default.Metrics {
		agg := m.Aggregation
		if agg == "" {
			agg = pivot.SumAggregation
		}
		resp.Metrics = append(resp.Metrics, drill.MetricSpec{Name: m.Name, Field: m.Field, Aggregation: agg})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePivotPage renders the server-side debug view. All state lives in the
// URL, so expand/collapse toggles are plain links.
func (s *Server) handlePivotPage(w http.ResponseWriter, r *http.Request) {
	state := query.NewViewState(r.URL)
	dataset, err := s.datasetFor(state.Dataset)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if state.Dataset == "" {
		state.Dataset = dataset.Name
	}

	cfg := state.Config()
	if len(cfg.GroupBy) == 0 && len(cfg.Metrics) == 0 {
		cfg = dataset.Default
		state.GroupBy = cfg.GroupBy
		state.SplitBy = cfg.SplitBy
		state.Metrics = cfg.Metrics
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	filters := make(map[string]drill.FilterValue, len(state.Filters))
	for field, value := range state.Filters {
		filters[field] = drill.Equals(value)
	}
	rows, err := filterRows(dataset.service.Rows(), filters)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	res := pivot.Aggregate(rows, cfg)

	vm := views.BuildPivotViewModel(
		dataset.Name,
		res,
		cfg,
		func(n *pivot.Node) bool { return state.IsExpanded(n.ID) },
		func(id string, expand bool) string { return state.WithExpanded(id, expand).URL() },
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, vm); err != nil {
		s.logger.Error("rendering pivot page", zap.Error(err))
	}
}

func (s *Server) datasetFor(name string) (*Dataset, error) {
	if name == "" {
		return s.datasets[s.order[0]], nil
	}
	d, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q not found", name)
	}
	return d, nil
}

func filterRows(rows []pivot.Row, filters map[string]drill.FilterValue) ([]pivot.Row, error) {
	if len(filters) == 0 {
		return rows, nil
	}
	for field, f := range filters {
		if f.Type != "" && f.Type != drill.FilterEquals {
			return nil, fmt.Errorf("unsupported filter type %q on field %q", f.Type, field)
		}
	}
	var out []pivot.Row
	for _, row := range rows {
		keep := true
		for field, f := range filters {
			if row.Dimension(field) != fmt.Sprintf("%v", f.Value) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
