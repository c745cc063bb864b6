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

package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

// harness wires the workflow to a local search provider, a local media host
// and in-memory fakes for everything else. Without media the host answers
// with a watch page instead of a video, so nothing can be staged.
type harness struct {
	config   *cloud.Config
	store    *test.FakeObjectStore
	repo     *test.FakeRepository
	text     *test.FakeTextModel
	video    *test.FakeVideoModel
	progress *test.RecordingProgress
	clients  *cloud.ServiceClients
}

func newHarness(t *testing.T, withMedia bool) *harness {
	t.Helper()
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !withMedia {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(test.HTMLPage())
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(test.MP4Header())
	}))
	t.Cleanup(media.Close)

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, test.GetFeedSearchPayload(media.URL, media.URL))
	}))
	t.Cleanup(search.Close)

	config := *test.GetConfig()
	config.Storage.Prefix = "staged"
	config.Workflow.AnalysisWorkers = 2

	h := &harness{
		config:   &config,
		store:    test.NewFakeObjectStore(),
		repo:     test.NewFakeRepository(),
		text:     &test.FakeTextModel{Answers: []string{test.GetQueriesAnswer(5), test.GetStrategyAnswer()}},
		progress: &test.RecordingProgress{},
	}
	h.video = &test.FakeVideoModel{Respond: func(ctx context.Context, prompt *cloud.VideoPrompt) (string, error) {
		return test.GetAnalysisAnswer("tutorial"), nil
	}}
	h.clients = &cloud.ServiceClients{
		ObjectStore: h.store,
		Search:      cloud.NewSearchClient(cloud.SearchProvider{BaseURL: search.URL, Path: "/search"}),
		TextModel:   h.text,
		VideoModel:  h.video,
		Progress:    h.progress,
	}
	return h
}

func (h *harness) request() *model.WorkflowRequest {
	return &model.WorkflowRequest{
		BusinessDescription: "A meal prep delivery service for busy professionals in Austin",
		OwnerID:             "auth0|owner-1",
		VideosPerQuery:      2,
	}
}

func TestContentStrategyWorkflow(t *testing.T) {
	h := newHarness(t, true)
	w, err := workflow.NewContentStrategyWorkflow(h.config, h.clients, h.repo)
	test.HandleErr(err, t)

	result, err := w.Run(context.Background(), h.request())
	test.HandleErr(err, t)

	assert.Equal(t, model.StageStrategyBuilt, result.Stage)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Queries, 5)
	assert.Equal(t, 5, result.Counts[model.StageQueriesGenerated])
	assert.Equal(t, 10, result.Counts[model.StageVideosScraped])
	assert.Equal(t, 10, result.Counts[model.StageVideosAnalyzed])
	assert.NotNil(t, result.Strategy)
	assert.NotEmpty(t, result.Strategy.RawContent)
	assert.Equal(t, model.ParseModeSections, result.Strategy.ParseMode)
	assert.Len(t, result.Strategy.ContentThemes, 3)
	assert.NotEmpty(t, result.Strategy.ID)

	assert.Equal(t, []model.Stage{
		model.StageQueriesGenerated,
		model.StageVideosScraped,
		model.StageVideosAnalyzed,
		model.StageStrategyBuilt,
	}, h.progress.Stages())
	for _, e := range h.progress.Events {
		assert.Equal(t, result.RunID, e.RunID)
	}

	assert.Len(t, h.store.Paths(), 10)
	for _, p := range h.store.Paths() {
		assert.True(t, strings.HasPrefix(p, "staged/"), p)
	}
	assert.Len(t, h.repo.Owners, 1)
	assert.Len(t, h.repo.Batches, 1)
	assert.Len(t, h.repo.Videos, 10)
	assert.Len(t, h.repo.Analyses, 10)
	assert.Len(t, h.repo.Strategies, 1)
	assert.Len(t, h.video.Prompts, 10)
}

func TestContentStrategyWorkflowWithoutRepository(t *testing.T) {
	h := newHarness(t, true)
	w, err := workflow.NewContentStrategyWorkflow(h.config, h.clients, nil)
	test.HandleErr(err, t)

	result, err := w.Run(context.Background(), h.request())
	test.HandleErr(err, t)
	assert.Equal(t, model.StageStrategyBuilt, result.Stage)
	assert.Empty(t, result.Strategy.ID)
	assert.Len(t, h.store.Paths(), 10)
}

func TestContentStrategyWorkflowSkipsFailedAnalyses(t *testing.T) {
	h := newHarness(t, true)
	h.video.Respond = func(ctx context.Context, prompt *cloud.VideoPrompt) (string, error) {
		if strings.Contains(prompt.Prompt, "number 2") {
			return "", fmt.Errorf("%w: boom", model.ErrUpstreamUnavailable)
		}
		return test.GetAnalysisAnswer("tutorial"), nil
	}
	w, err := workflow.NewContentStrategyWorkflow(h.config, h.clients, h.repo)
	test.HandleErr(err, t)

	result, err := w.Run(context.Background(), h.request())
	test.HandleErr(err, t)
	assert.Equal(t, model.StageStrategyBuilt, result.Stage)
	assert.Equal(t, 5, result.Counts[model.StageVideosAnalyzed])
	assert.Len(t, result.Skipped, 5)
	for _, s := range result.Skipped {
		assert.Equal(t, "7302", s.PlatformID)
		assert.Equal(t, model.StageVideosAnalyzed, s.Stage)
	}
}

func TestContentStrategyWorkflowEmptyBatch(t *testing.T) {
	h := newHarness(t, false)
	w, err := workflow.NewContentStrategyWorkflow(h.config, h.clients, h.repo)
	test.HandleErr(err, t)

	result, err := w.Run(context.Background(), h.request())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrEmptyBatch))
	assert.Equal(t, model.StageFailed, result.Stage)
	assert.Nil(t, result.Strategy)
	assert.Equal(t, []model.Stage{model.StageQueriesGenerated, model.StageFailed}, h.progress.Stages())
	assert.Empty(t, h.store.Paths())
	assert.Empty(t, h.video.Prompts)
}

func TestContentStrategyWorkflowRejectsBlankDescription(t *testing.T) {
	h := newHarness(t, true)
	w, err := workflow.NewContentStrategyWorkflow(h.config, h.clients, h.repo)
	test.HandleErr(err, t)

	result, err := w.Run(context.Background(), &model.WorkflowRequest{BusinessDescription: "   "})
	assert.Error(t, err)
	assert.Equal(t, model.StageFailed, result.Stage)
	assert.Empty(t, h.text.Prompts)
}

func TestContentStrategyWorkflowBadTemplate(t *testing.T) {
	h := newHarness(t, true)
	h.config.PromptTemplates.Queries = "{{.BusinessDescription"
	_, err := workflow.NewContentStrategyWorkflow(h.config, h.clients, h.repo)
	assert.Error(t, err)
}

func reconcileFixture() (*cloud.Config, *test.FakeObjectStore, *test.FakeRepository) {
	config := *test.GetConfig()
	config.Storage.Prefix = "staged"
	config.Reconcile.OrphanAgeHours = 24

	store := test.NewFakeObjectStore()
	old := time.Now().Add(-48 * time.Hour)
	store.Add("staged/b1/a-7301-aaaa.mp4", old)
	store.Add("staged/b1/b-7302-bbbb.mp4", old)
	store.Add("staged/b1/c-7303-cccc.mp4", old)
	store.Add("staged/b2/d-7304-dddd.mp4", time.Now())
	store.Add("elsewhere/e.mp4", old)

	repo := test.NewFakeRepository()
	repo.Videos = []*model.VideoRecord{
		{ID: "v1", StoragePath: "staged/b1/a-7301-aaaa.mp4", StorageURL: "https://storage.test/bucket/staged/b1/a-7301-aaaa.mp4"},
		{ID: "v2", StorageURL: "https://storage.test/bucket/staged/b1/b-7302-bbbb.mp4"},
	}
	return &config, store, repo
}

func TestStorageReconcileWorkflow(t *testing.T) {
	config, store, repo := reconcileFixture()
	w := workflow.NewStorageReconcileWorkflow(config, store, repo)

	report, err := w.Reconcile(context.Background())
	test.HandleErr(err, t)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 1, report.Backfilled)
	assert.Equal(t, []string{"staged/b1/c-7303-cccc.mp4"}, report.Orphans)
	assert.Equal(t, 1, report.Deleted)

	assert.Equal(t, "staged/b1/b-7302-bbbb.mp4", repo.Videos[1].StoragePath)
	assert.Equal(t, []string{
		"elsewhere/e.mp4",
		"staged/b1/a-7301-aaaa.mp4",
		"staged/b1/b-7302-bbbb.mp4",
		"staged/b2/d-7304-dddd.mp4",
	}, store.Paths())

	again, err := w.Reconcile(context.Background())
	test.HandleErr(err, t)
	assert.Equal(t, 0, again.Backfilled)
	assert.Equal(t, 0, again.Deleted)
}

func TestStorageReconcileKeepsRowsBeyondScanWindow(t *testing.T) {
	config, store, repo := reconcileFixture()
	config.Reconcile.ScanLimit = 1
	w := workflow.NewStorageReconcileWorkflow(config, store, repo)

	report, err := w.Reconcile(context.Background())
	test.HandleErr(err, t)

	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 1, report.Backfilled)
	assert.Equal(t, []string{"staged/b1/c-7303-cccc.mp4"}, report.Orphans)
	assert.Contains(t, store.Paths(), "staged/b1/b-7302-bbbb.mp4")
	assert.Equal(t, "staged/b1/b-7302-bbbb.mp4", repo.Videos[1].StoragePath)
}

func TestStorageReconcileKeepsObjectsWhenLookupFails(t *testing.T) {
	config, store, repo := reconcileFixture()
	repo.Fail["FindVideoByStagedFile"] = errors.New("connection reset")
	w := workflow.NewStorageReconcileWorkflow(config, store, repo)

	report, err := w.Reconcile(context.Background())
	test.HandleErr(err, t)

	assert.Empty(t, report.Orphans)
	assert.Equal(t, 0, report.Deleted)
	assert.Len(t, store.Paths(), 5)
}

func TestStorageReconcileSchedule(t *testing.T) {
	config, store, repo := reconcileFixture()
	w := workflow.NewStorageReconcileWorkflow(config, store, repo)

	c := cron.New(cron.WithSeconds())
	_, err := w.Schedule(context.Background(), c, "not a schedule")
	assert.Error(t, err)

	id, err := w.Schedule(context.Background(), c, "@every 1h")
	test.HandleErr(err, t)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)
}
