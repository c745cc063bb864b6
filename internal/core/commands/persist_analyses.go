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
	"log/slog"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/repository"
)

// PersistAnalyses stores each accepted analysis against its video row.
// Analyses of videos that were never persisted are left out.
type PersistAnalyses struct {
	cor.BaseCommand
	repo repository.Repository
}

func NewPersistAnalyses(name string, repo repository.Repository) *PersistAnalyses {
	return &PersistAnalyses{BaseCommand: *cor.NewBaseCommand(name), repo: repo}
}

func (c *PersistAnalyses) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam())
	ownerID := GetOwnerID(context)
	analyses, ok := in.([]*model.AnalyzedVideo)
	if c.repo == nil || ownerID == "" || !ok {
		context.Add(cor.CtxOut, in)
		return
	}
	for _, a := range analyses {
		if a.Video == nil || a.Video.VideoID == "" {
			continue
		}
		rec, err := c.repo.SaveAnalysis(context.GetContext(), ownerID, a.Video.VideoID, a.Analysis)
		if err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			slog.ErrorContext(context.GetContext(), "failed to persist analysis", "video_id", a.Video.VideoID, "error", err)
			continue
		}
		a.AnalysisID = rec.ID
	}
	c.Succeed(context, in)
}
