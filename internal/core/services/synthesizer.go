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
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/normalize"
)

// StrategyStore persists a finished strategy.
type StrategyStore interface {
	SaveStrategy(ctx context.Context, ownerID string, batchID string, strategy *model.Strategy) (*model.StrategyRecord, error)
}

// SynthesisInput is everything one synthesis call needs. OwnerID is an
// already resolved owner row id; when empty nothing is persisted.
type SynthesisInput struct {
	BusinessDescription string
	Analyses            []*model.AnalyzedVideo
	OwnerID             string
	BatchID             string
}

// Synthesizer turns the accepted analyses of a run into one strategy.
type Synthesizer struct {
	model    cloud.TextModel
	prompt   *template.Template
	system   string
	headings []string
	store    StrategyStore
}

func NewSynthesizer(textModel cloud.TextModel, prompt *template.Template, system string, store StrategyStore) *Synthesizer {
	return &Synthesizer{
		model:    textModel,
		prompt:   prompt,
		system:   system,
		headings: model.DefaultStrategyHeadings,
		store:    store,
	}
}

// Digest reduces analyzed videos to the fields sent to the text model.
func Digest(analyses []*model.AnalyzedVideo) []*model.VideoDigest {
	out := make([]*model.VideoDigest, 0, len(analyses))
	for _, a := range analyses {
		if a == nil || a.Video == nil || a.Analysis == nil {
			continue
		}
		url := a.Video.OriginalURL
		if url == "" {
			url = a.Video.StorageURL
		}
		out = append(out, &model.VideoDigest{
			SearchTerm:  a.Video.SearchTerm,
			URL:         url,
			Title:       a.Video.Caption,
			Description: a.Analysis.Summary,
		})
	}
	return out
}

// ParseStrategy fills the strategy sections from text. headings are
// positional: they name, in order, Observations, Key Takeaways, Sample
// Script, Technical Specs, Content Themes, Hashtag Strategy and Posting
// Frequency, so a translated heading list fills the same fields. Extra
// headings are ignored. RawContent always holds text unchanged.
func ParseStrategy(text string, headings []string) *model.Strategy {
	sections := normalize.ExtractSections(text, headings)
	s := &model.Strategy{RawContent: text, ParseMode: model.ParseModeRaw}
	var themes string
	fields := []*string{
		&s.Observations,
		&s.KeyTakeaways,
		&s.SampleScript,
		&s.TechnicalSpecs,
		&themes,
		&s.HashtagStrategy,
		&s.PostingFrequency,
	}
	for i, heading := range headings {
		if i >= len(fields) {
			break
		}
		*fields[i] = sections.Get(heading)
	}
	s.ContentThemes = normalize.ListItems(themes)
	if sections.Structured() {
		s.ParseMode = model.ParseModeSections
	}
	if s.ContentThemes == nil {
		s.ContentThemes = []string{}
	}
	return s
}

// Synthesize builds the strategy. Persisting it is best-effort: a failed
// save is logged and the strategy is still returned, without an id.
func (s *Synthesizer) Synthesize(ctx context.Context, in *SynthesisInput) (*model.Strategy, error) {
	digests := Digest(in.Analyses)
	if len(digests) == 0 {
		return nil, fmt.Errorf("%w: no analyzed videos to synthesize", model.ErrEmptyBatch)
	}
	videosJSON, err := json.MarshalIndent(digests, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode video digests: %w", err)
	}
	var doc bytes.Buffer
	err = s.prompt.Execute(&doc, map[string]interface{}{
		"BusinessDescription": in.BusinessDescription,
		"VideosJSON":          string(videosJSON),
		"Headings":            strings.Join(s.headings, ", "),
		"VideoCount":          len(digests),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render strategy prompt: %w", err)
	}

	out, err := s.model.GenerateText(ctx, &cloud.TextPrompt{System: s.system, Prompt: doc.String()})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, fmt.Errorf("%w: empty strategy", model.ErrMalformedResponse)
	}

	strategy := ParseStrategy(out, s.headings)
	strategy.BusinessDescription = in.BusinessDescription
	strategy.VideoCount = len(digests)
	strategy.CreatedAt = time.Now()
	if strategy.ParseMode == model.ParseModeRaw {
		slog.WarnContext(ctx, "strategy has no recognizable sections, keeping raw text")
	}

	if s.store != nil && in.OwnerID != "" {
		rec, err := s.store.SaveStrategy(ctx, in.OwnerID, in.BatchID, strategy)
		if err != nil {
			slog.ErrorContext(ctx, "failed to persist strategy", "owner_id", in.OwnerID, "error", err)
		} else {
			strategy.ID = rec.ID
			strategy.CreatedAt = rec.CreatedAt
		}
	}
	return strategy, nil
}
