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

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/api"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	got    *model.WorkflowRequest
	result *model.WorkflowResult
	err    error
}

func (f *fakeRunner) Run(_ context.Context, req *model.WorkflowRequest) (*model.WorkflowResult, error) {
	f.got = req
	if f.result == nil {
		f.result = &model.WorkflowResult{RunID: "run-1", Stage: model.StageStrategyBuilt, Strategy: &model.Strategy{RawContent: "## Observations\nok"}}
	}
	return f.result, f.err
}

type fakeStyles struct {
	owner string
	limit int
}

func (f *fakeStyles) StyleHistory(_ context.Context, ownerID string, limit int) ([]*model.StyleCount, error) {
	f.owner, f.limit = ownerID, limit
	return []*model.StyleCount{{ContentStyle: "tutorial", Videos: 4, AvgViews: 1200}}, nil
}

func newServer(runner *fakeRunner, video *test.FakeVideoModel) (*api.Server, *cloud.ChannelProgress) {
	progress := cloud.NewChannelProgress()
	tmpl := template.Must(template.New("analysis").Parse("{{.Caption}} for {{.BusinessDescription}}"))
	return &api.Server{
		Workflows:  runner,
		Analyzer:   services.NewAnalyzer(video, tmpl, "", services.VideoWindow{FPS: 2}, time.Minute),
		Subscriber: progress,
		Analytics:  &fakeStyles{},
		Identity:   api.NewOwnerIdentity(secret),
	}, progress
}

func token(t *testing.T, subject string) string {
	t.Helper()
	out, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	test.HandleErr(err, t)
	return out
}

func post(router http.Handler, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newServer(&fakeRunner{}, &test.FakeVideoModel{})
	router := api.NewRouter(s, "test")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunWorkflow(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newServer(runner, &test.FakeVideoModel{})
	// Without identity the owner named in the body is trusted.
	s.Identity = nil
	router := api.NewRouter(s, "test")

	w := post(router, "/api/v1/workflows", test.GetWorkflowRequestMessage(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	out := &model.WorkflowResult{}
	test.HandleErr(json.Unmarshal(w.Body.Bytes(), out), t)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "## Observations\nok", out.Strategy.RawContent)
	assert.Equal(t, "auth0|owner-1", runner.got.OwnerID)
	assert.Equal(t, 2, runner.got.VideosPerQuery)
}

func TestRunWorkflowOwnerFromToken(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newServer(runner, &test.FakeVideoModel{})
	router := api.NewRouter(s, "test")

	w := post(router, "/api/v1/workflows", `{"businessDescription": "dog grooming in Leeds"}`,
		map[string]string{"Authorization": "Bearer " + token(t, "auth0|owner-9")})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth0|owner-9", runner.got.OwnerID)

	w = post(router, "/api/v1/workflows", `{"businessDescription": "dog grooming", "ownerId": "auth0|owner-9"}`,
		map[string]string{"Authorization": "Bearer " + token(t, "auth0|owner-9")})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth0|owner-9", runner.got.OwnerID)
}

func TestRunWorkflowRejectsForeignOwner(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"other subject", map[string]string{"Authorization": "Bearer " + token(t, "auth0|owner-9")}},
		{"anonymous", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s, _ := newServer(runner, &test.FakeVideoModel{})
			w := post(api.NewRouter(s, "test"), "/api/v1/workflows",
				`{"businessDescription": "dog grooming", "ownerId": "auth0|victim"}`, tc.headers)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Contains(t, w.Body.String(), "FORBIDDEN")
			assert.Nil(t, runner.got)
		})
	}
}

func TestRunWorkflowAnonymous(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newServer(runner, &test.FakeVideoModel{})
	w := post(api.NewRouter(s, "test"), "/api/v1/workflows", `{"businessDescription": "dog grooming"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", runner.got.OwnerID)
}

func TestRunWorkflowBadToken(t *testing.T) {
	runner := &fakeRunner{}
	s, _ := newServer(runner, &test.FakeVideoModel{})
	router := api.NewRouter(s, "test")

	w := post(router, "/api/v1/workflows", `{"businessDescription": "x"}`, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, runner.got)
}

func TestRunWorkflowErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"blank description", `{"businessDescription": "  "}`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad json", `{"businessDescription": `, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty batch", `{"businessDescription": "bakery"}`, fmt.Errorf("scrape-videos: %w", model.ErrEmptyBatch), http.StatusUnprocessableEntity, "EMPTY_BATCH"},
		{"upstream", `{"businessDescription": "bakery"}`, fmt.Errorf("generate-queries: %w", model.ErrUpstreamUnavailable), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"unknown", `{"businessDescription": "bakery"}`, errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{err: tc.err, result: &model.WorkflowResult{Stage: model.StageFailed}}
			s, _ := newServer(runner, &test.FakeVideoModel{})
			w := post(api.NewRouter(s, "test"), "/api/v1/workflows", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)

			out := struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}{}
			test.HandleErr(json.Unmarshal(w.Body.Bytes(), &out), t)
			assert.Equal(t, tc.code, out.Error.Code)
			assert.NotEmpty(t, out.Error.Message)
		})
	}
}

func TestAnalyzeVideoStream(t *testing.T) {
	video := &test.FakeVideoModel{ChunkSize: 40, Respond: func(ctx context.Context, prompt *cloud.VideoPrompt) (string, error) {
		return test.GetAnalysisAnswer("tutorial"), nil
	}}
	s, _ := newServer(&fakeRunner{}, video)
	router := api.NewRouter(s, "test")

	w := post(router, "/api/v1/videos/analyze",
		`{"videoUrl": "https://cdn.test/v.mp4", "caption": "bowl hack", "businessDescription": "meal prep"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Greater(t, strings.Count(body, "event:chunk"), 1)
	assert.Contains(t, body, "event:complete")
	assert.NotContains(t, body, "event:error")
	assert.True(t, strings.Index(body, "event:chunk") < strings.Index(body, "event:complete"))

	assert.Len(t, video.Prompts, 1)
	assert.Equal(t, "https://cdn.test/v.mp4", video.Prompts[0].VideoURL)
	assert.Equal(t, "bowl hack for meal prep", video.Prompts[0].Prompt)
}

func TestAnalyzeVideoStreamError(t *testing.T) {
	video := &test.FakeVideoModel{Respond: func(ctx context.Context, prompt *cloud.VideoPrompt) (string, error) {
		return "I cannot watch videos.", nil
	}}
	s, _ := newServer(&fakeRunner{}, video)
	router := api.NewRouter(s, "test")

	w := post(router, "/api/v1/videos/analyze", `{"videoUrl": "https://cdn.test/v.mp4"}`, nil)
	body := w.Body.String()
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, "MALFORMED_RESPONSE")
	assert.NotContains(t, body, "event:complete")
}

func TestAnalyzeVideoRequiresURL(t *testing.T) {
	s, _ := newServer(&fakeRunner{}, &test.FakeVideoModel{})
	w := post(api.NewRouter(s, "test"), "/api/v1/videos/analyze", `{"caption": "x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func getStyles(router http.Handler, path string, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStyleHistory(t *testing.T) {
	s, _ := newServer(&fakeRunner{}, &test.FakeVideoModel{})
	styles := s.Analytics.(*fakeStyles)
	router := api.NewRouter(s, "test")

	w := getStyles(router, "/api/v1/analytics/styles?limit=3", token(t, "o-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "o-1", styles.owner)
	assert.Equal(t, 3, styles.limit)
	assert.Contains(t, w.Body.String(), "tutorial")

	w = getStyles(router, "/api/v1/analytics/styles?ownerId=o-1", token(t, "o-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, styles.limit)
}

func TestStyleHistoryEnforcesCaller(t *testing.T) {
	s, _ := newServer(&fakeRunner{}, &test.FakeVideoModel{})
	styles := s.Analytics.(*fakeStyles)
	router := api.NewRouter(s, "test")

	w := getStyles(router, "/api/v1/analytics/styles?ownerId=victim", token(t, "o-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = getStyles(router, "/api/v1/analytics/styles?ownerId=victim", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "", styles.owner)
}

func TestStyleHistoryWithoutIdentity(t *testing.T) {
	s, _ := newServer(&fakeRunner{}, &test.FakeVideoModel{})
	s.Identity = nil
	styles := s.Analytics.(*fakeStyles)
	router := api.NewRouter(s, "test")

	w := getStyles(router, "/api/v1/analytics/styles?ownerId=o-2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "o-2", styles.owner)

	w = getStyles(router, "/api/v1/analytics/styles", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressRelay(t *testing.T) {
	s, progress := newServer(&fakeRunner{}, &test.FakeVideoModel{})
	srv := httptest.NewServer(api.NewRouter(s, "test"))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/workflows/run-7/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	test.HandleErr(err, t)
	defer conn.Close()

	ctx := context.Background()
	progress.Report(ctx, &model.ProgressEvent{RunID: "run-other", Stage: model.StageQueriesGenerated, Count: 9})
	progress.Report(ctx, &model.ProgressEvent{RunID: "run-7", Stage: model.StageQueriesGenerated, Count: 5})
	progress.Report(ctx, &model.ProgressEvent{RunID: "run-7", Stage: model.StageStrategyBuilt, Count: 1})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	first := &model.ProgressEvent{}
	test.HandleErr(conn.ReadJSON(first), t)
	assert.Equal(t, model.StageQueriesGenerated, first.Stage)
	assert.Equal(t, 5, first.Count)

	last := &model.ProgressEvent{}
	test.HandleErr(conn.ReadJSON(last), t)
	assert.Equal(t, model.StageStrategyBuilt, last.Stage)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}
