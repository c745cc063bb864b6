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
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// HTTPVideoModel calls a multimodal generation endpoint that takes
// {model, input.messages, parameters} and answers with
// output.choices[0].message.content[0].text. The video is passed by URL, so
// it must be readable by the provider.
type HTTPVideoModel struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
}

func NewHTTPVideoModel(cfg MultimodalProvider) *HTTPVideoModel {
	return &HTTPVideoModel{
		endpoint:   cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: seconds(cfg.TimeoutSeconds, 5*time.Minute)},
		limiter:    newLimiter(cfg.RequestsPerSecond),
		retry:      RetryPolicy{MaxAttempts: 2, Backoff: 2 * time.Second},
	}
}

type mmContent struct {
	Text      string   `json:"text,omitempty"`
	Video     string   `json:"video,omitempty"`
	FPS       float64  `json:"fps,omitempty"`
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
}

type mmMessage struct {
	Role    string      `json:"role"`
	Content []mmContent `json:"content"`
}

type mmRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []mmMessage `json:"messages"`
	} `json:"input"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type mmResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Output  struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

func buildMultimodalRequest(modelName string, prompt *VideoPrompt) *mmRequest {
	start := prompt.Start.Seconds()
	end := prompt.End.Seconds()
	video := mmContent{Video: prompt.VideoURL, FPS: prompt.FPS, StartTime: &start}
	if prompt.End > 0 {
		video.EndTime = &end
	}
	req := &mmRequest{Model: modelName, Parameters: map[string]interface{}{"result_format": "message"}}
	if len(prompt.System) > 0 {
		req.Input.Messages = append(req.Input.Messages, mmMessage{Role: "system", Content: []mmContent{{Text: prompt.System}}})
	}
	req.Input.Messages = append(req.Input.Messages, mmMessage{
		Role:    "user",
		Content: []mmContent{video, {Text: prompt.Prompt}},
	})
	return req
}

func (h *HTTPVideoModel) AnalyzeVideo(ctx context.Context, prompt *VideoPrompt) (string, error) {
	if prompt.VideoURL == "" {
		return "", fmt.Errorf("%w: video url is required", model.ErrMalformedResponse)
	}
	var resp mmResponse
	headers := map[string]string{"Authorization": "Bearer " + h.apiKey}
	if err := postJSON(ctx, h.httpClient, h.limiter, h.retry, h.endpoint, headers, buildMultimodalRequest(h.model, prompt), &resp); err != nil {
		return "", err
	}
	if resp.Code != "" {
		return "", fmt.Errorf("%w: multimodal provider: %s: %s", model.ErrUpstreamUnavailable, resp.Code, resp.Message)
	}
	if len(resp.Output.Choices) == 0 || len(resp.Output.Choices[0].Message.Content) == 0 {
		return "", fmt.Errorf("%w: multimodal provider returned no content", model.ErrMalformedResponse)
	}
	var sb strings.Builder
	for _, c := range resp.Output.Choices[0].Message.Content {
		sb.WriteString(c.Text)
	}
	return sb.String(), nil
}

// StreamVideo performs one blocking call and hands the whole answer to
// onChunk as a single fragment.
func (h *HTTPVideoModel) StreamVideo(ctx context.Context, prompt *VideoPrompt, onChunk func(string) error) (string, error) {
	out, err := h.AnalyzeVideo(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := onChunk(out); err != nil {
		return "", err
	}
	return out, nil
}
