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

package commands

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
)

// ScrapeVideos is stage 2: one search per query, then download and staging
// of every candidate with media. Failed queries and failed candidates are
// skipped; only an empty result fails the stage.
type ScrapeVideos struct {
	cor.BaseCommand
	resolver *services.Resolver
}

func NewScrapeVideos(name string, resolver *services.Resolver) *ScrapeVideos {
	return &ScrapeVideos{BaseCommand: *cor.NewBaseCommand(name), resolver: resolver}
}

func (c *ScrapeVideos) Execute(context cor.Context) {
	queries, ok := context.Get(c.GetInputParam()).([]*model.SearchQuery)
	req := GetRequest(context)
	if !ok || req == nil {
		c.Fail(context, fmt.Errorf("scrape-videos needs queries and a request"))
		return
	}
	batchID := GetQueryBatchID(context)
	if batchID == "" {
		batchID = req.RunID
	}

	staged, skipped := c.resolver.ResolveAndStage(context.GetContext(), batchID, queries, req.VideosPerQuery)
	addSkipped(context, skipped...)
	slog.InfoContext(context.GetContext(), "staged videos", "run_id", req.RunID, "staged", len(staged), "skipped", len(skipped))
	if len(staged) == 0 {
		c.Fail(context, fmt.Errorf("%w: no videos could be staged for %d queries", model.ErrEmptyBatch, len(queries)))
		return
	}
	context.Add(ParamStaged, staged)
	c.Succeed(context, staged)
}
