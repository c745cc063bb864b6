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
	goctx "context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
)

// AnalyzeVideos is stage 3. Videos are analyzed by a fixed pool of workers
// (one worker means strictly sequential). A failed video is logged and
// skipped; the other videos keep going. Results keep the staging order.
type AnalyzeVideos struct {
	cor.BaseCommand
	analyzer        *services.Analyzer
	numberOfWorkers int
}

func NewAnalyzeVideos(name string, analyzer *services.Analyzer, numberOfWorkers int) *AnalyzeVideos {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	return &AnalyzeVideos{BaseCommand: *cor.NewBaseCommand(name), analyzer: analyzer, numberOfWorkers: numberOfWorkers}
}

type analysisJob struct {
	index int
	ctx   goctx.Context
	span  trace.Span
	video *model.StagedVideo
}

type analysisResult struct {
	index    int
	analysis *model.VideoAnalysis
	err      error
}

func (j *analysisJob) Close(status codes.Code, description string) {
	j.span.SetStatus(status, description)
	j.span.End()
}

func (c *AnalyzeVideos) worker(businessDescription string, jobs <-chan *analysisJob, results chan<- *analysisResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for j := range jobs {
		out, err := c.analyzer.Analyze(j.ctx, j.video, businessDescription)
		if err != nil {
			j.span.RecordError(err)
			j.Close(codes.Error, "analysis failed")
			results <- &analysisResult{index: j.index, err: err}
			continue
		}
		j.Close(codes.Ok, "analysis completed")
		results <- &analysisResult{index: j.index, analysis: out}
	}
}

func (c *AnalyzeVideos) Execute(context cor.Context) {
	staged, ok := context.Get(c.GetInputParam()).([]*model.StagedVideo)
	req := GetRequest(context)
	if !ok || req == nil {
		c.Fail(context, fmt.Errorf("analyze-videos needs staged videos and a request"))
		return
	}

	var wg sync.WaitGroup
	jobs := make(chan *analysisJob, len(staged))
	results := make(chan *analysisResult, len(staged))
	for w := 1; w <= c.numberOfWorkers; w++ {
		wg.Add(1)
		go c.worker(req.BusinessDescription, jobs, results, &wg)
	}
	for i, v := range staged {
		jobCtx, span := c.Tracer.Start(context.GetContext(), fmt.Sprintf("%s_video_%d", c.GetName(), i))
		span.SetAttributes(
			attribute.Int("sequence", i),
			attribute.String("platform_id", v.PlatformID),
			attribute.String("search_term", v.SearchTerm),
		)
		jobs <- &analysisJob{index: i, ctx: jobCtx, span: span, video: v}
	}
	close(jobs)
	wg.Wait()
	close(results)

	ordered := make([]*analysisResult, len(staged))
	for r := range results {
		ordered[r.index] = r
	}
	analyses := make([]*model.AnalyzedVideo, 0, len(staged))
	skipped := make([]*model.SkippedVideo, 0)
	for i, r := range ordered {
		if r.err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			slog.WarnContext(context.GetContext(), "skipping video after failed analysis",
				"platform_id", staged[i].PlatformID, "error", r.err)
			skipped = append(skipped, &model.SkippedVideo{PlatformID: staged[i].PlatformID, Stage: model.StageVideosAnalyzed, Reason: r.err.Error()})
			continue
		}
		analyses = append(analyses, &model.AnalyzedVideo{Video: staged[i], Analysis: r.analysis})
	}
	addSkipped(context, skipped...)

	if len(analyses) == 0 {
		c.Fail(context, fmt.Errorf("%w: none of %d staged videos could be analyzed", model.ErrEmptyBatch, len(staged)))
		return
	}
	context.Add(ParamAnalyses, analyses)
	c.Succeed(context, analyses)
}
