// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// RetryPolicy bounds retries of transient HTTP failures: transport errors,
// 429 and 5xx. Other statuses fail immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Do sends the request produced by build until it gets a 2xx answer or runs
// out of attempts. build is called once per attempt so request bodies can be
// re-read. The returned response body must be closed by the caller. Failures
// wrap model.ErrUpstreamUnavailable.
func (p RetryPolicy) Do(ctx context.Context, client *http.Client, limiter *rate.Limiter, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		if attempt > 1 {
			delay := p.Backoff * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
			}
		}
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s %s: %v", model.ErrUpstreamUnavailable, req.Method, req.URL.Redacted(), err)
			slog.WarnContext(ctx, "request failed", "url", req.URL.Redacted(), "attempt", attempt, "error", err)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		lastErr = fmt.Errorf("%w: %s %s: status %d: %s", model.ErrUpstreamUnavailable, req.Method, req.URL.Redacted(), resp.StatusCode, string(body))
		if !retryable(resp.StatusCode) {
			return nil, lastErr
		}
		slog.WarnContext(ctx, "retryable status", "url", req.URL.Redacted(), "attempt", attempt, "status", resp.StatusCode)
	}
	return nil, lastErr
}

// postJSON sends payload as JSON and decodes a JSON answer into out.
func postJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, policy RetryPolicy, url string, headers map[string]string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := policy.Do(ctx, client, limiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", model.ErrMalformedResponse, err)
	}
	return nil
}

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
