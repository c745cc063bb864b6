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
	"strings"
	"testing"
	"text/template"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

var queriesPrompt = template.Must(template.New("queries").Parse(
	"Give me {{.Count}} search terms for: {{.BusinessDescription}}"))

func TestGenerateQueries(t *testing.T) {
	tm := &test.FakeTextModel{Answers: []string{test.GetQueriesAnswer(5)}}
	g := services.NewQueryGenerator(tm, queriesPrompt, "system", "trending small business ideas")

	out, err := g.Generate(context.Background(), &model.WorkflowRequest{BusinessDescription: "Meal prep", OwnerID: "o-1"}, 5)
	assert.NoError(t, err)
	if assert.Len(t, out, 5) {
		assert.Equal(t, "healthy meal prep 1", out[0].Text)
		assert.Equal(t, "o-1", out[4].OwnerID)
	}
	assert.Equal(t, "Give me 5 search terms for: Meal prep", tm.Prompts[0].Prompt)
}

func TestGenerateQueriesFallsBackToDescription(t *testing.T) {
	tm := &test.FakeTextModel{Answers: []string{"I cannot help with that"}}
	g := services.NewQueryGenerator(tm, queriesPrompt, "", "trending small business ideas")

	out, err := g.Generate(context.Background(), &model.WorkflowRequest{BusinessDescription: "Dog grooming van"}, 5)
	assert.NoError(t, err)
	if assert.Len(t, out, 1) {
		assert.Equal(t, "Dog grooming van", out[0].Text)
	}
}

func TestGenerateQueriesUpstreamError(t *testing.T) {
	g := services.NewQueryGenerator(&test.FakeTextModel{}, queriesPrompt, "", "x")
	_, err := g.Generate(context.Background(), &model.WorkflowRequest{BusinessDescription: "d"}, 5)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestDefaultQuery(t *testing.T) {
	g := services.NewQueryGenerator(nil, queriesPrompt, "", "trending small business ideas")

	assert.Equal(t, "trending small business ideas", g.DefaultQuery("   "))
	assert.Equal(t, 60, utf8.RuneCountInString(g.DefaultQuery(strings.Repeat("é", 100))))
	assert.Equal(t, "Café crème", g.DefaultQuery("  Café   crème "))
}

