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
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/normalize"
)

const defaultQueryLength = 60

// QueryGenerator asks the text model for short search terms that describe
// the audience of a business.
type QueryGenerator struct {
	model        cloud.TextModel
	prompt       *template.Template
	system       string
	defaultQuery string
}

func NewQueryGenerator(textModel cloud.TextModel, prompt *template.Template, system string, defaultQuery string) *QueryGenerator {
	return &QueryGenerator{model: textModel, prompt: prompt, system: system, defaultQuery: defaultQuery}
}

// DefaultQuery is the single query used when the model output cannot be
// parsed: the business description cut to 60 characters, or the configured
// default when the description is blank.
func (g *QueryGenerator) DefaultQuery(businessDescription string) string {
	desc := strings.Join(strings.Fields(businessDescription), " ")
	if desc == "" {
		return g.defaultQuery
	}
	if utf8.RuneCountInString(desc) > defaultQueryLength {
		desc = strings.TrimSpace(string([]rune(desc)[:defaultQueryLength]))
	}
	return desc
}

// Generate returns n queries, or one default query when the model answer
// holds fewer than n usable items.
func (g *QueryGenerator) Generate(ctx context.Context, req *model.WorkflowRequest, n int) ([]*model.SearchQuery, error) {
	var doc bytes.Buffer
	err := g.prompt.Execute(&doc, map[string]interface{}{
		"BusinessDescription": req.BusinessDescription,
		"Count":               n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render query prompt: %w", err)
	}
	out, err := g.model.GenerateText(ctx, &cloud.TextPrompt{System: g.system, Prompt: doc.String()})
	if err != nil {
		return nil, err
	}

	result := normalize.ExtractStringArray(out, n, g.DefaultQuery(req.BusinessDescription))
	if result.Fallback() {
		slog.WarnContext(ctx, "query generation fell back to default", "raw", out)
	}
	queries := make([]*model.SearchQuery, 0, len(result.Items))
	for _, text := range result.Items {
		if strings.TrimSpace(text) == "" {
			continue
		}
		queries = append(queries, &model.SearchQuery{Text: text, OwnerID: req.OwnerID})
	}
	slog.InfoContext(ctx, "generated queries", "strategy", result.Strategy, "count", len(queries))
	return queries, nil
}
