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
	"strings"

	studio "github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// StudioTextModel generates text through the Gemini API using an API key
// rather than project credentials.
type StudioTextModel struct {
	client  *studio.Client
	model   *studio.GenerativeModel
	limiter *rate.Limiter
}

func NewStudioTextModel(ctx context.Context, cfg TextProvider) (*StudioTextModel, error) {
	client, err := studio.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini api client: %w", err)
	}
	m := client.GenerativeModel(cfg.Model)
	if cfg.Temperature > 0 {
		m.SetTemperature(cfg.Temperature)
	}
	if cfg.MaxTokens > 0 {
		m.SetMaxOutputTokens(cfg.MaxTokens)
	}
	return &StudioTextModel{client: client, model: m, limiter: newLimiter(cfg.RequestsPerSecond)}, nil
}

func (s *StudioTextModel) GenerateText(ctx context.Context, prompt *TextPrompt) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	m := *s.model
	if len(prompt.System) > 0 {
		m.SystemInstruction = &studio.Content{Parts: []studio.Part{studio.Text(prompt.System)}}
	}
	resp, err := m.GenerateContent(ctx, studio.Text(prompt.Prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini api: %v", model.ErrUpstreamUnavailable, err)
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(studio.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return TrimFence(sb.String()), nil
}

func (s *StudioTextModel) Close() error {
	return s.client.Close()
}
