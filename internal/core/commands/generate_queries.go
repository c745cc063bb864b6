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

package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
)

// GenerateQueries is stage 1: it asks the text model for search terms that
// describe the business's audience.
type GenerateQueries struct {
	cor.BaseCommand
	generator *services.QueryGenerator
	count     int
}

func NewGenerateQueries(name string, generator *services.QueryGenerator, count int) *GenerateQueries {
	if count <= 0 {
		count = 5
	}
	return &GenerateQueries{BaseCommand: *cor.NewBaseCommand(name), generator: generator, count: count}
}

func (c *GenerateQueries) Execute(context cor.Context) {
	req := GetRequest(context)
	if req == nil {
		c.Fail(context, fmt.Errorf("no workflow request in context"))
		return
	}
	queries, err := c.generator.Generate(context.GetContext(), req, c.count)
	if err != nil {
		c.Fail(context, fmt.Errorf("query generation failed: %w", err))
		return
	}
	if len(queries) == 0 {
		c.Fail(context, fmt.Errorf("%w: no search queries generated", model.ErrEmptyBatch))
		return
	}
	context.Add(ParamQueries, queries)
	c.Succeed(context, queries)
}
