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

package commands_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/commands"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

func newContext(in interface{}) cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	ctx.Add(cor.CtxIn, in)
	return ctx
}

func withRequest(ctx cor.Context, req *model.WorkflowRequest) cor.Context {
	ctx.Add(commands.ParamRequest, req)
	return ctx
}

var defaults = cloud.WorkflowDefaults{VideosPerQuery: 2, MaxVideosPerQuery: 10}

func TestParseRequestFromMessage(t *testing.T) {
	cmd := commands.NewParseRequest("parse-request", defaults)
	ctx := newContext(test.GetWorkflowRequestMessage())
	cmd.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	req := commands.GetRequest(ctx)
	if assert.NotNil(t, req) {
		assert.NotEmpty(t, req.RunID)
		assert.Equal(t, "auth0|owner-1", req.OwnerID)
		assert.Equal(t, 2, req.VideosPerQuery)
	}
	assert.Equal(t, req, ctx.Get(cor.CtxOut))
}

func TestParseRequestAppliesDefaultsAndCap(t *testing.T) {
	cmd := commands.NewParseRequest("parse-request", defaults)

	ctx := newContext(&model.WorkflowRequest{BusinessDescription: " Bakery "})
	cmd.Execute(ctx)
	assert.Equal(t, 2, commands.GetRequest(ctx).VideosPerQuery)
	assert.Equal(t, "Bakery", commands.GetRequest(ctx).BusinessDescription)

	ctx = newContext(&model.WorkflowRequest{BusinessDescription: "Bakery", VideosPerQuery: 50, RunID: "run-1"})
	cmd.Execute(ctx)
	assert.Equal(t, 10, commands.GetRequest(ctx).VideosPerQuery)
	assert.Equal(t, "run-1", commands.GetRequest(ctx).RunID)
}

func TestParseRequestRejectsInvalidInput(t *testing.T) {
	cmd := commands.NewParseRequest("parse-request", defaults)
	for _, in := range []interface{}{`{"businessDescription": "  "}`, "not json", 42} {
		ctx := newContext(in)
		cmd.Execute(ctx)
		assert.True(t, ctx.HasErrors(), fmt.Sprint(in))
		assert.Nil(t, commands.GetRequest(ctx))
	}
}

func TestResolveOwnerCreatesPlaceholder(t *testing.T) {
	repo := test.NewFakeRepository()
	cmd := commands.NewResolveOwner("resolve-owner", repo)
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "d", OwnerID: "auth0|new"}
	ctx := withRequest(newContext(req), req)
	cmd.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.NotEmpty(t, commands.GetOwnerID(ctx))
	assert.Equal(t, req, ctx.Get(cor.CtxOut))
	assert.Len(t, repo.Owners, 1)
}

func TestResolveOwnerFailureDoesNotFailRun(t *testing.T) {
	repo := test.NewFakeRepository()
	repo.Fail["ResolveOwner"] = fmt.Errorf("%w: insert failed", model.ErrMissingReference)
	cmd := commands.NewResolveOwner("resolve-owner", repo)
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "d", OwnerID: "auth0|x"}
	ctx := withRequest(newContext(req), req)
	cmd.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, "", commands.GetOwnerID(ctx))
	assert.Equal(t, req, ctx.Get(cor.CtxOut))
}

func TestGenerateQueriesStage(t *testing.T) {
	tm := &test.FakeTextModel{Answers: []string{test.GetQueriesAnswer(5)}}
	gen := services.NewQueryGenerator(tm, template.Must(template.New("q").Parse("{{.Count}}")), "", "x")
	cmd := commands.NewGenerateQueries("generate-queries", gen, 5)
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "Bakery"}
	ctx := withRequest(newContext(req), req)
	cmd.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Len(t, ctx.Get(commands.ParamQueries), 5)
}

func TestPersistSideEffectsPassThrough(t *testing.T) {
	repo := test.NewFakeRepository()
	owner, _ := repo.ResolveOwner(context.Background(), "auth0|o")
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "Bakery", OwnerID: "auth0|o"}
	queries := []*model.SearchQuery{{Text: "a"}, {Text: "b"}}

	ctx := withRequest(newContext(queries), req)
	ctx.Add(commands.ParamOwner, owner)
	commands.NewPersistQueries("persist-queries", repo).Execute(ctx)
	assert.Equal(t, queries, ctx.Get(cor.CtxOut))
	assert.Equal(t, repo.Batches[0].ID, commands.GetQueryBatchID(ctx))
	assert.Equal(t, []string{"a", "b"}, repo.Batches[0].Queries)

	staged := []*model.StagedVideo{{CandidateVideo: model.CandidateVideo{PlatformID: "1"}}}
	ctx.Add(cor.CtxIn, staged)
	commands.NewPersistVideos("persist-videos", repo).Execute(ctx)
	assert.NotEmpty(t, staged[0].VideoID)
	assert.Equal(t, repo.Batches[0].ID, repo.Videos[0].QueryBatchID)

	analyses := []*model.AnalyzedVideo{{Video: staged[0], Analysis: model.GetExampleAnalysis()}}
	ctx.Add(cor.CtxIn, analyses)
	commands.NewPersistAnalyses("persist-analyses", repo).Execute(ctx)
	assert.NotEmpty(t, analyses[0].AnalysisID)
	assert.Equal(t, staged[0].VideoID, repo.Analyses[0].VideoID)
	assert.False(t, ctx.HasErrors())
}

func TestPersistFailureIsNotAnError(t *testing.T) {
	repo := test.NewFakeRepository()
	repo.Fail["SaveQueryBatch"] = errors.New("database down")
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "Bakery"}
	queries := []*model.SearchQuery{{Text: "a"}}
	ctx := withRequest(newContext(queries), req)
	ctx.Add(commands.ParamOwner, &model.Owner{ID: "o-1"})

	commands.NewPersistQueries("persist-queries", repo).Execute(ctx)
	assert.False(t, ctx.HasErrors())
	assert.Equal(t, queries, ctx.Get(cor.CtxOut))
	assert.Equal(t, "", commands.GetQueryBatchID(ctx))
}

func TestPersistWithoutOwnerSkips(t *testing.T) {
	repo := test.NewFakeRepository()
	queries := []*model.SearchQuery{{Text: "a"}}
	ctx := withRequest(newContext(queries), &model.WorkflowRequest{RunID: "r"})
	commands.NewPersistQueries("persist-queries", repo).Execute(ctx)
	assert.Empty(t, repo.Batches)
	assert.Equal(t, queries, ctx.Get(cor.CtxOut))
}

func stagedVideos(n int) []*model.StagedVideo {
	out := make([]*model.StagedVideo, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &model.StagedVideo{
			CandidateVideo: model.CandidateVideo{PlatformID: fmt.Sprintf("v%d", i), Caption: fmt.Sprintf("caption %d", i)},
			StorageURL:     fmt.Sprintf("https://storage.test/v%d.mp4", i),
		})
	}
	return out
}

func newAnalyzer(respond func(ctx context.Context, p *cloud.VideoPrompt) (string, error)) *services.Analyzer {
	return services.NewAnalyzer(&test.FakeVideoModel{Respond: respond},
		template.Must(template.New("a").Parse("{{.Caption}}")), "", services.VideoWindow{}, time.Second)
}

func TestAnalyzeVideosIsolatesFailuresAndKeepsOrder(t *testing.T) {
	analyzer := newAnalyzer(func(_ context.Context, p *cloud.VideoPrompt) (string, error) {
		switch p.Prompt {
		case "caption 2":
			return "no json here", nil
		case "caption 4":
			return "", fmt.Errorf("%w: 503", model.ErrUpstreamUnavailable)
		}
		return test.GetAnalysisAnswer(p.Prompt), nil
	})
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "d"}
	for _, workers := range []int{1, 3} {
		ctx := withRequest(newContext(stagedVideos(5)), req)
		commands.NewAnalyzeVideos("analyze-videos", analyzer, workers).Execute(ctx)

		assert.False(t, ctx.HasErrors())
		analyses := ctx.Get(cor.CtxOut).([]*model.AnalyzedVideo)
		if assert.Len(t, analyses, 3) {
			assert.Equal(t, "v1", analyses[0].Video.PlatformID)
			assert.Equal(t, "v3", analyses[1].Video.PlatformID)
			assert.Equal(t, "v5", analyses[2].Video.PlatformID)
			assert.Equal(t, "caption 5", analyses[2].Analysis.ContentStyle)
		}
		skipped := commands.GetSkipped(ctx)
		if assert.Len(t, skipped, 2) {
			assert.Equal(t, "v2", skipped[0].PlatformID)
			assert.Equal(t, model.StageVideosAnalyzed, skipped[1].Stage)
		}
	}
}

func TestAnalyzeVideosEmptyBatch(t *testing.T) {
	analyzer := newAnalyzer(func(context.Context, *cloud.VideoPrompt) (string, error) {
		return "", fmt.Errorf("%w: down", model.ErrUpstreamUnavailable)
	})
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "d"}
	ctx := withRequest(newContext(stagedVideos(2)), req)
	commands.NewAnalyzeVideos("analyze-videos", analyzer, 2).Execute(ctx)

	assert.True(t, ctx.HasErrors())
	assert.ErrorIs(t, cor.Err(ctx), model.ErrEmptyBatch)
}

type fakeInserter struct {
	rows []*model.AnalysisRow
	err  error
}

func (f *fakeInserter) Put(_ context.Context, src interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, src.([]*model.AnalysisRow)...)
	return nil
}

func TestAnalysesToBigQuery(t *testing.T) {
	req := &model.WorkflowRequest{RunID: "run-7", BusinessDescription: "d"}
	staged := stagedVideos(2)
	analyses := []*model.AnalyzedVideo{
		{Video: staged[0], Analysis: model.GetExampleAnalysis()},
		{Video: staged[1], Analysis: &model.VideoAnalysis{Summary: "s"}},
	}

	ins := &fakeInserter{}
	ctx := withRequest(newContext(analyses), req)
	commands.NewAnalysesToBigQuery("analyses-to-bigquery", ins).Execute(ctx)
	assert.Equal(t, analyses, ctx.Get(cor.CtxOut))
	if assert.Len(t, ins.rows, 2) {
		assert.Equal(t, "run-7", ins.rows[0].RunID)
		assert.Equal(t, "v2", ins.rows[1].PlatformID)
		assert.NotNil(t, ins.rows[1].Hooks)
	}

	failing := &fakeInserter{err: errors.New("quota")}
	ctx = withRequest(newContext(analyses), req)
	commands.NewAnalysesToBigQuery("analyses-to-bigquery", failing).Execute(ctx)
	assert.False(t, ctx.HasErrors())
	assert.Equal(t, analyses, ctx.Get(cor.CtxOut))
}

func TestSynthesizeStrategyStage(t *testing.T) {
	tm := &test.FakeTextModel{Answers: []string{test.GetStrategyAnswer()}}
	synth := services.NewSynthesizer(tm, template.Must(template.New("s").Parse("{{.VideosJSON}}")), "", nil)
	req := &model.WorkflowRequest{RunID: "r", BusinessDescription: "Bakery"}
	analyses := []*model.AnalyzedVideo{{Video: stagedVideos(1)[0], Analysis: model.GetExampleAnalysis()}}
	ctx := withRequest(newContext(analyses), req)
	commands.NewSynthesizeStrategy("synthesize-strategy", synth).Execute(ctx)

	assert.False(t, ctx.HasErrors())
	strategy := ctx.Get(commands.ParamStrategy).(*model.Strategy)
	assert.Equal(t, "Bakery", strategy.BusinessDescription)
	assert.True(t, strings.Contains(tm.Prompts[0].Prompt, "caption 1"))
}
