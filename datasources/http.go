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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tabulata/tabulata/core/drill"
	"github.com/tabulata/tabulata/core/pivot"
)

// HTTPService is a drill.Fetcher backed by a remote aggregation service.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff; client errors are not. Each attempt carries a correlation id.
type HTTPService struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	maxTries uint64
}

// HTTPOption configures an HTTPService.
type HTTPOption func(*HTTPService)

// WithHTTPClient sets the underlying HTTP client (and thus its timeout).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPService) { s.client = client }
}

// WithHTTPLogger sets the service's logger.
func WithHTTPLogger(l *zap.Logger) HTTPOption {
	return func(s *HTTPService) { s.logger = l }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n uint64) HTTPOption {
	return func(s *HTTPService) { s.maxTries = n }
}

// NewHTTPService creates a client for the aggregation endpoint, e.g.
// "https://analytics.internal/api/aggregate".
func NewHTTPService(endpoint string, opts ...HTTPOption) *HTTPService {
	s := &HTTPService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
		maxTries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAggregate implements drill.Fetcher.
func (s *HTTPService) FetchAggregate(ctx context.Context, req drill.Request) ([]pivot.Row, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding aggregation request: %w", err)
	}
	requestID := uuid.NewString()

	var rows []pivot.Row
	attempt := 0
	operation := func() error {
		attempt++
		var opErr error
		rows, opErr = s.post(ctx, body, requestID)
		if opErr != nil {
			s.logger.Debug("aggregation request attempt failed",
				zap.String("request_id", requestID),
				zap.Int("attempt", attempt),
				zap.Error(opErr))
		}
		return opErr
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxTries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("aggregation request %s: %w", requestID, err)
	}
	return rows, nil
}

func (s *HTTPService) post(ctx context.Context, body []byte, requestID string) ([]pivot.Row, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("aggregation service returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		// client errors will not improve on retry
		return nil, backoff.Permanent(fmt.Errorf("aggregation service returned %s", resp.Status))
	}

	var rows []pivot.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding aggregation response: %w", err))
	}
	return rows, nil
}
