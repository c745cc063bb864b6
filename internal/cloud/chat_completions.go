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

// ChatCompletionsModel talks to an OpenAI-compatible /chat/completions
// endpoint.
type ChatCompletionsModel struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	maxTokens   int32
	httpClient  *http.Client
	limiter     *rate.Limiter
	retry       RetryPolicy
}

func NewChatCompletionsModel(cfg TextProvider) *ChatCompletionsModel {
	return &ChatCompletionsModel{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: seconds(cfg.TimeoutSeconds, 2*time.Minute)},
		limiter:     newLimiter(cfg.RequestsPerSecond),
		retry:       RetryPolicy{MaxAttempts: MaxRetries, Backoff: time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *ChatCompletionsModel) GenerateText(ctx context.Context, prompt *TextPrompt) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(prompt.System) > 0 {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: prompt.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt.Prompt})

	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.httpClient, c.limiter, c.retry, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: chat completions: %s", model.ErrUpstreamUnavailable, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completions returned no choices", model.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
