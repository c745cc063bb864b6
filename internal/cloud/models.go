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
	"time"
)

// VideoPrompt is one multimodal request: a time-boxed slice of a staged video
// plus a single text prompt.
type VideoPrompt struct {
	VideoURL string // HTTP(S) URL readable by the provider
	VideoURI string // gs:// URI, used by Vertex AI
	MIMEType string
	FPS      float64
	Start    time.Duration
	End      time.Duration
	System   string
	Prompt   string
}

// VideoModel is a multimodal model that can watch a video.
type VideoModel interface {
	// AnalyzeVideo returns the full text answer.
	AnalyzeVideo(ctx context.Context, prompt *VideoPrompt) (string, error)
	// StreamVideo calls onChunk for every text fragment as it arrives and
	// returns the concatenated answer. A non-nil error from onChunk stops
	// the stream and is returned.
	StreamVideo(ctx context.Context, prompt *VideoPrompt, onChunk func(string) error) (string, error)
}

// TextPrompt is a single-turn text request.
type TextPrompt struct {
	System string
	Prompt string
}

// TextModel is a text-only generative model.
type TextModel interface {
	GenerateText(ctx context.Context, prompt *TextPrompt) (string, error)
}
