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

// SynthesizeStrategy is stage 4.
type SynthesizeStrategy struct {
	cor.BaseCommand
	synthesizer *services.Synthesizer
}

func NewSynthesizeStrategy(name string, synthesizer *services.Synthesizer) *SynthesizeStrategy {
	return &SynthesizeStrategy{BaseCommand: *cor.NewBaseCommand(name), synthesizer: synthesizer}
}

func (c *SynthesizeStrategy) Execute(context cor.Context) {
	analyses, ok := context.Get(c.GetInputParam()).([]*model.AnalyzedVideo)
	req := GetRequest(context)
	if !ok || req == nil {
		c.Fail(context, fmt.Errorf("synthesize-strategy needs analyses and a request"))
		return
	}
	strategy, err := c.synthesizer.Synthesize(context.GetContext(), &services.SynthesisInput{
		BusinessDescription: req.BusinessDescription,
		Analyses:            analyses,
		OwnerID:             GetOwnerID(context),
		BatchID:             GetQueryBatchID(context),
	})
	if err != nil {
		c.Fail(context, fmt.Errorf("strategy synthesis failed: %w", err))
		return
	}
	context.Add(ParamStrategy, strategy)
	c.Succeed(context, strategy)
}
