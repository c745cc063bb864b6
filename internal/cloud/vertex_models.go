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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// vertexCounters are the token and retry counters shared by the Vertex models.
type vertexCounters struct {
	input  metric.Int64Counter
	output metric.Int64Counter
	retry  metric.Int64Counter
}

func newVertexCounters(name string) vertexCounters {
	meter := otel.Meter(MeterName)
	c := vertexCounters{}
	c.input, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.input", name))
	c.output, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.token.output", name))
	c.retry, _ = meter.Int64Counter(fmt.Sprintf("%s.gemini.retry", name))
	return c
}

// MeterName is the instrumentation scope of the cloud package.
const MeterName = "github.com/jaycherian/gcp-go-trend-strategist/cloud"

// WithSystemInstruction returns a copy of the model whose requests carry
// system instead of the configured instruction. The copy shares the rate
// limiter with the original.
func (q *QuotaAwareGenerativeAIModel) WithSystemInstruction(system string) *QuotaAwareGenerativeAIModel {
	if len(strings.TrimSpace(system)) == 0 {
		return q
	}
	cfg := &genai.GenerateContentConfig{}
	if q.GenerativeContentConfig != nil {
		copied := *q.GenerativeContentConfig
		cfg = &copied
	}
	cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	out := *q
	out.GenerativeContentConfig = cfg
	return &out
}

// VertexVideoModel analyzes videos stored in Cloud Storage with Gemini.
type VertexVideoModel struct {
	model    *QuotaAwareGenerativeAIModel
	counters vertexCounters
}

func NewVertexVideoModel(m *QuotaAwareGenerativeAIModel) *VertexVideoModel {
	return &VertexVideoModel{model: m, counters: newVertexCounters("vertex-video")}
}

func videoContents(prompt *VideoPrompt) []*genai.Content {
	uri := prompt.VideoURI
	if uri == "" {
		uri = prompt.VideoURL
	}
	mimeType := prompt.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	video := genai.NewPartFromURI(uri, mimeType)
	meta := &genai.VideoMetadata{StartOffset: prompt.Start, EndOffset: prompt.End}
	if prompt.FPS > 0 {
		meta.FPS = genai.Ptr(prompt.FPS)
	}
	video.VideoMetadata = meta
	return []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{video, genai.NewPartFromText(prompt.Prompt)}, genai.RoleUser),
	}
}

func (v *VertexVideoModel) AnalyzeVideo(ctx context.Context, prompt *VideoPrompt) (string, error) {
	out, err := GenerateMultiModalResponse(ctx, v.counters.input, v.counters.output, v.counters.retry, 0,
		v.model.WithSystemInstruction(prompt.System), videoContents(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: vertex video analysis: %v", model.ErrUpstreamUnavailable, err)
	}
	return out, nil
}

func (v *VertexVideoModel) StreamVideo(ctx context.Context, prompt *VideoPrompt, onChunk func(string) error) (string, error) {
	var sb strings.Builder
	stream := v.model.WithSystemInstruction(prompt.System).GenerateContentStream(ctx, videoContents(prompt))
	for resp, err := range stream {
		if err != nil {
			return "", fmt.Errorf("%w: vertex video stream: %v", model.ErrUpstreamUnavailable, err)
		}
		recordUsage(ctx, v.counters.input, v.counters.output, resp)
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		sb.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return "", err
		}
	}
	return TrimFence(sb.String()), nil
}

// VertexTextModel generates text with a Gemini model on Vertex AI.
type VertexTextModel struct {
	model    *QuotaAwareGenerativeAIModel
	counters vertexCounters
}

func NewVertexTextModel(m *QuotaAwareGenerativeAIModel) *VertexTextModel {
	return &VertexTextModel{model: m, counters: newVertexCounters("vertex-text")}
}

func (v *VertexTextModel) GenerateText(ctx context.Context, prompt *TextPrompt) (string, error) {
	out, err := GenerateMultiModalResponse(ctx, v.counters.input, v.counters.output, v.counters.retry, 0,
		v.model.WithSystemInstruction(prompt.System), genai.Text(prompt.Prompt))
	if err != nil {
		return "", fmt.Errorf("%w: vertex text generation: %v", model.ErrUpstreamUnavailable, err)
	}
	return out, nil
}
