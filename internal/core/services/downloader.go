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

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

const sniffLength = 512

// errTooLarge aborts a staging write whose payload passed the download limit.
var errTooLarge = errors.New("payload exceeds the download limit")

// cappedReader fails once more than remaining bytes have been read, so the
// store sees an error instead of a truncated object.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return 0, errTooLarge
	}
	return n, err
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases in and collapses everything that is not a letter or digit
// into single dashes, capped at 40 characters.
func Slug(in string) string {
	out := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(in), "-"), "-")
	if len(out) > 40 {
		out = strings.TrimRight(out[:40], "-")
	}
	if out == "" {
		out = "video"
	}
	return out
}

// ObjectPath is the staging location of one video:
// {prefix}/{batchId}/{slug(query)}-{platformId}-{uuid8}.{ext}
func ObjectPath(prefix string, batchID string, query string, platformID string, ext string) string {
	name := fmt.Sprintf("%s-%s-%s.%s", Slug(query), Slug(platformID), uuid.NewString()[:8], ext)
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if batchID != "" {
		parts = append(parts, batchID)
	}
	parts = append(parts, name)
	return strings.Join(parts, "/")
}

// Downloader fetches media binaries and writes them to the object store.
type Downloader struct {
	HTTPClient *http.Client
	Store      cloud.ObjectStore
	Retry      cloud.RetryPolicy
	Prefix     string
	MaxBytes   int64
}

func NewDownloader(store cloud.ObjectStore, cfg cloud.Download, prefix string) *Downloader {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Downloader{
		HTTPClient: &http.Client{Timeout: timeout},
		Store:      store,
		Retry:      cloud.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: time.Duration(cfg.BackoffMillis) * time.Millisecond},
		Prefix:     prefix,
		MaxBytes:   cfg.MaxBytes,
	}
}

// Stage downloads the candidate's media URL, checks that the payload is a
// video and stores it. Network failures wrap model.ErrUpstreamUnavailable;
// payloads that are not video (for example an HTML watch page) or are larger
// than MaxBytes wrap model.ErrMalformedResponse.
func (d *Downloader) Stage(ctx context.Context, batchID string, candidate *model.CandidateVideo) (*model.StagedVideo, error) {
	if !candidate.HasMedia() {
		return nil, fmt.Errorf("%w: candidate %s has no media url", model.ErrMalformedResponse, candidate.PlatformID)
	}
	resp, err := d.Retry.Do(ctx, d.HTTPClient, nil, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.MediaURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trend-strategist/1.0)")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if d.MaxBytes > 0 && resp.ContentLength > d.MaxBytes {
		return nil, fmt.Errorf("%w: payload for %s is %d bytes, limit is %d", model.ErrMalformedResponse, candidate.PlatformID, resp.ContentLength, d.MaxBytes)
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading %s: %v", model.ErrUpstreamUnavailable, candidate.PlatformID, err)
	}
	head = head[:n]
	if !filetype.IsVideo(head) {
		return nil, fmt.Errorf("%w: payload for %s is not a video (%s)", model.ErrMalformedResponse, candidate.PlatformID, resp.Header.Get("Content-Type"))
	}
	kind, _ := filetype.Match(head)

	var body io.Reader = resp.Body
	if d.MaxBytes > 0 {
		if int64(n) > d.MaxBytes {
			return nil, fmt.Errorf("%w: payload for %s exceeds %d bytes", model.ErrMalformedResponse, candidate.PlatformID, d.MaxBytes)
		}
		body = &cappedReader{r: resp.Body, remaining: d.MaxBytes - int64(n)}
	}
	path := ObjectPath(d.Prefix, batchID, candidate.SearchTerm, candidate.PlatformID, kind.Extension)
	metadata := map[string]string{
		"search_term": candidate.SearchTerm,
		"platform_id": candidate.PlatformID,
		"batch_id":    batchID,
	}
	url, err := d.Store.Put(ctx, path, kind.MIME.Value, metadata, io.MultiReader(bytes.NewReader(head), body))
	if errors.Is(err, errTooLarge) {
		return nil, fmt.Errorf("%w: payload for %s exceeds %d bytes", model.ErrMalformedResponse, candidate.PlatformID, d.MaxBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: staging %s: %v", model.ErrUpstreamUnavailable, candidate.PlatformID, err)
	}
	return &model.StagedVideo{
		CandidateVideo: *candidate,
		StorageURL:     url,
		StoragePath:    path,
		StorageURI:     d.Store.URI(path),
		ContentType:    kind.MIME.Value,
		BatchID:        batchID,
	}, nil
}
