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

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/normalize"
)

// VideoWindow is the slice of a video the model watches.
type VideoWindow struct {
	FPS   float64
	Start time.Duration
	End   time.Duration
}

// Analyzer asks the multimodal model to break one staged video down into a
// model.VideoAnalysis.
type Analyzer struct {
	model   cloud.VideoModel
	prompt  *template.Template
	system  string
	window  VideoWindow
	timeout time.Duration
	example string
}

func NewAnalyzer(videoModel cloud.VideoModel, prompt *template.Template, system string, window VideoWindow, timeout time.Duration) *Analyzer {
	example, _ := json.MarshalIndent(model.GetExampleAnalysis(), "", "  ")
	return &Analyzer{
		model:   videoModel,
		prompt:  prompt,
		system:  system,
		window:  window,
		timeout: timeout,
		example: string(example),
	}
}

func (a *Analyzer) videoPrompt(video *model.StagedVideo, businessDescription string) (*cloud.VideoPrompt, error) {
	var doc bytes.Buffer
	err := a.prompt.Execute(&doc, map[string]interface{}{
		"BusinessDescription": businessDescription,
		"SearchTerm":          video.SearchTerm,
		"Author":              video.AuthorHandle,
		"Caption":             video.Caption,
		"Likes":               video.Engagement.Likes,
		"Comments":            video.Engagement.Comments,
		"Shares":              video.Engagement.Shares,
		"Views":               video.Engagement.Views,
		"DurationSeconds":     video.DurationSeconds,
		"ExampleJSON":         a.example,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render analysis prompt: %w", err)
	}
	return &cloud.VideoPrompt{
		VideoURL: video.StorageURL,
		VideoURI: video.StorageURI,
		MIMEType: video.ContentType,
		FPS:      a.window.FPS,
		Start:    a.window.Start,
		End:      a.window.End,
		System:   a.system,
		Prompt:   doc.String(),
	}, nil
}

func (a *Analyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// ParseAnalysis decodes the first JSON object in text. An analysis without a
// summary is malformed.
func ParseAnalysis(text string) (*model.VideoAnalysis, error) {
	out := &model.VideoAnalysis{}
	if err := normalize.DecodeObject(text, out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, fmt.Errorf("%w: analysis has no summary", model.ErrMalformedResponse)
	}
	return out, nil
}

// timeoutError maps an expired per-video deadline to an upstream failure so
// callers treat it like any other recoverable per-video error.
func timeoutError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, model.ErrUpstreamUnavailable) {
		return fmt.Errorf("%w: analysis timed out: %v", model.ErrUpstreamUnavailable, err)
	}
	return err
}

// Analyze runs one bounded multimodal call.
func (a *Analyzer) Analyze(ctx context.Context, video *model.StagedVideo, businessDescription string) (*model.VideoAnalysis, error) {
	prompt, err := a.videoPrompt(video, businessDescription)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := a.withTimeout(ctx)
	defer cancel()

	out, err := a.model.AnalyzeVideo(callCtx, prompt)
	if err != nil {
		return nil, timeoutError(callCtx, err)
	}
	return ParseAnalysis(out)
}

// AnalyzeStream forwards every text fragment to onChunk as it arrives and
// parses the complete answer at the end. An error from onChunk (for example
// a disconnected client) stops the stream and is returned unchanged.
func (a *Analyzer) AnalyzeStream(ctx context.Context, video *model.StagedVideo, businessDescription string, onChunk func(string) error) (*model.VideoAnalysis, error) {
	prompt, err := a.videoPrompt(video, businessDescription)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := a.withTimeout(ctx)
	defer cancel()

	out, err := a.model.StreamVideo(callCtx, prompt, onChunk)
	if err != nil {
		return nil, timeoutError(callCtx, err)
	}
	return ParseAnalysis(out)
}
