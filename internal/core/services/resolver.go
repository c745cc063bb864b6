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

// Package services holds the per-stage business logic of a trend strategy
// run. Each service works on plain model values and is wired into the
// pipeline by a command in the commands package.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// Searcher is the search provider port.
type Searcher interface {
	Search(ctx context.Context, query string, count int, filters *model.SearchFilters) (*cloud.SearchResponse, error)
}

// Stager writes one candidate's media to durable storage.
type Stager interface {
	Stage(ctx context.Context, batchID string, candidate *model.CandidateVideo) (*model.StagedVideo, error)
}

// Resolver turns search queries into staged videos.
type Resolver struct {
	search  Searcher
	stager  Stager
	filters model.SearchFilters
}

func NewResolver(search Searcher, stager Stager, filters model.SearchFilters) *Resolver {
	return &Resolver{search: search, stager: stager, filters: filters}
}

// Resolve returns at most count candidates for query, in provider order.
// Candidates without a usable media URL are dropped and logged.
func (r *Resolver) Resolve(ctx context.Context, query string, count int, filters *model.SearchFilters) ([]*model.CandidateVideo, error) {
	if filters == nil {
		filters = &r.filters
	}
	resp, err := r.search.Search(ctx, query, count, filters)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if resp.Kind == cloud.UnknownShape {
		return nil, fmt.Errorf("%w: search %q returned an unrecognized payload", model.ErrMalformedResponse, query)
	}
	out := make([]*model.CandidateVideo, 0, count)
	for _, c := range resp.Candidates(query) {
		if len(out) >= count {
			break
		}
		if !c.HasMedia() {
			slog.WarnContext(ctx, "dropping candidate without media url", "query", query, "platform_id", c.PlatformID)
			continue
		}
		out = append(out, c)
	}
	slog.InfoContext(ctx, "resolved candidates", "query", query, "shape", resp.Kind.String(), "count", len(out))
	return out, nil
}

// Stage stages every candidate in order. A failed candidate is logged,
// reported in skipped and does not stop the batch.
func (r *Resolver) Stage(ctx context.Context, batchID string, candidates []*model.CandidateVideo) (staged []*model.StagedVideo, skipped []*model.SkippedVideo) {
	staged = make([]*model.StagedVideo, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			skipped = append(skipped, &model.SkippedVideo{PlatformID: c.PlatformID, Stage: model.StageVideosScraped, Reason: err.Error()})
			continue
		}
		v, err := r.stager.Stage(ctx, batchID, c)
		if err != nil {
			slog.WarnContext(ctx, "failed to stage video", "platform_id", c.PlatformID, "query", c.SearchTerm, "error", err)
			skipped = append(skipped, &model.SkippedVideo{PlatformID: c.PlatformID, Stage: model.StageVideosScraped, Reason: err.Error()})
			continue
		}
		staged = append(staged, v)
	}
	return staged, skipped
}

// ResolveAndStage runs Resolve then Stage for every query. A query whose
// search fails is skipped; the other queries still run. The result holds at
// most count videos per query.
func (r *Resolver) ResolveAndStage(ctx context.Context, batchID string, queries []*model.SearchQuery, count int) ([]*model.StagedVideo, []*model.SkippedVideo) {
	staged := make([]*model.StagedVideo, 0, len(queries)*count)
	var skipped []*model.SkippedVideo
	for _, q := range queries {
		candidates, err := r.Resolve(ctx, q.Text, count, nil)
		if err != nil {
			slog.WarnContext(ctx, "skipping query", "query", q.Text, "error", err)
			continue
		}
		s, k := r.Stage(ctx, batchID, candidates)
		staged = append(staged, s...)
		skipped = append(skipped, k...)
	}
	return staged, skipped
}
