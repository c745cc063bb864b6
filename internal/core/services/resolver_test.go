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

package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

// payloadSearcher decodes a canned provider payload.
type payloadSearcher struct {
	payload string
}

func (p *payloadSearcher) Search(_ context.Context, _ string, _ int, _ *model.SearchFilters) (*cloud.SearchResponse, error) {
	out := &cloud.SearchResponse{}
	if err := json.Unmarshal([]byte(p.payload), out); err != nil {
		return nil, err
	}
	return out, nil
}

func newSearchServer(payload string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
}

func newResolver(searchURL string, store cloud.ObjectStore) *services.Resolver {
	search := cloud.NewSearchClient(cloud.SearchProvider{BaseURL: searchURL, Path: "/search"})
	d := services.NewDownloader(store, cloud.Download{MaxAttempts: 1, TimeoutSeconds: 5}, "staged")
	return services.NewResolver(search, d, model.SearchFilters{RecencyWindowDays: 7})
}

func TestResolveAndStageContinuesAfterFailure(t *testing.T) {
	media := newMediaServer("/media/v2.mp4")
	defer media.Close()
	search := newSearchServer(test.GetFeedSearchPayload(media.URL, media.URL, media.URL))
	defer search.Close()
	store := test.NewFakeObjectStore()
	r := newResolver(search.URL, store)

	staged, skipped := r.ResolveAndStage(context.Background(), "batch-1",
		[]*model.SearchQuery{{Text: "meal prep"}}, 3)

	if assert.Len(t, staged, 2) {
		assert.Equal(t, "7301", staged[0].PlatformID)
		assert.Equal(t, "7303", staged[1].PlatformID)
		assert.Equal(t, "meal prep", staged[0].SearchTerm)
	}
	if assert.Len(t, skipped, 1) {
		assert.Equal(t, "7302", skipped[0].PlatformID)
		assert.Equal(t, model.StageVideosScraped, skipped[0].Stage)
	}
	assert.Len(t, store.Paths(), 2)
}

func TestResolveCapsAtCount(t *testing.T) {
	search := newSearchServer(test.GetFeedSearchPayload("http://m", "http://m", "http://m"))
	defer search.Close()
	r := newResolver(search.URL, test.NewFakeObjectStore())

	candidates, err := r.Resolve(context.Background(), "meal prep", 2, nil)
	assert.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, "http://m/media/v1.mp4", candidates[0].MediaURL)
	assert.Equal(t, "https://www.tiktok.com/@chef_1/video/7301", candidates[0].OriginalURL)
}

func TestResolveDropsCandidatesWithoutMedia(t *testing.T) {
	searcher := &payloadSearcher{payload: `{"code": 0, "data": {"videos": [
		{"video_id": "1", "title": "no author, no media"},
		{"video_id": "2", "wmplay": "http://m/2-wm.mp4", "author": {"unique_id": "a"}},
		{"video_id": "3", "author": {"unique_id": "b"}}
	]}}`}
	r := services.NewResolver(searcher, nil, model.SearchFilters{})

	candidates, err := r.Resolve(context.Background(), "q", 5, nil)
	assert.NoError(t, err)
	if assert.Len(t, candidates, 2) {
		assert.Equal(t, "http://m/2-wm.mp4", candidates[0].MediaURL)
		assert.Equal(t, "https://www.tiktok.com/@b/video/3", candidates[1].MediaURL)
	}
}

func TestResolveTrendingShapeUsesPageURL(t *testing.T) {
	r := services.NewResolver(&payloadSearcher{payload: test.GetTrendingSearchPayload()}, nil, model.SearchFilters{})

	candidates, err := r.Resolve(context.Background(), "cheap lunch", 5, nil)
	assert.NoError(t, err)
	if assert.Len(t, candidates, 1) {
		c := candidates[0]
		assert.Equal(t, "https://www.tiktok.com/@fitfoodie/video/9001", c.MediaURL)
		assert.Equal(t, int64(120000), c.Engagement.Views)
		assert.Equal(t, "cheap lunch", c.SearchTerm)
	}
}

func TestResolveUnknownShape(t *testing.T) {
	r := services.NewResolver(&payloadSearcher{payload: `{"data": {"items": []}}`}, nil, model.SearchFilters{})
	_, err := r.Resolve(context.Background(), "q", 5, nil)
	assert.ErrorIs(t, err, model.ErrMalformedResponse)
}

func TestResolveAndStageSkipsFailedQuery(t *testing.T) {
	media := newMediaServer()
	defer media.Close()
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keywords") == "broken" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(test.GetFeedSearchPayload(media.URL)))
	}))
	defer search.Close()
	r := newResolver(search.URL, test.NewFakeObjectStore())

	staged, _ := r.ResolveAndStage(context.Background(), "b",
		[]*model.SearchQuery{{Text: "broken"}, {Text: "works"}}, 2)
	if assert.Len(t, staged, 1) {
		assert.Equal(t, "works", staged[0].SearchTerm)
	}
}
