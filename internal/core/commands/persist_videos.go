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

// PersistVideos writes one videos row per staged video and records the row id
// on the video so its analysis can reference it.
type PersistVideos struct {
	cor.BaseCommand
	repo repository.Repository
}

func NewPersistVideos(name string, repo repository.Repository) *PersistVideos {
	return &PersistVideos{BaseCommand: *cor.NewBaseCommand(name), repo: repo}
}

func (c *PersistVideos) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam())
	ownerID := GetOwnerID(context)
	staged, ok := in.([]*model.StagedVideo)
	if c.repo == nil || ownerID == "" || !ok {
		context.Add(cor.CtxOut, in)
		return
	}
	batchID := GetQueryBatchID(context)
	saved := 0
	for _, v := range staged {
		rec, err := c.repo.SaveVideo(context.GetContext(), ownerID, batchID, v)
		if err != nil {
			c.GetErrorCounter().Add(context.GetContext(), 1)
			slog.ErrorContext(context.GetContext(), "failed to persist video", "platform_id", v.PlatformID, "error", err)
			continue
		}
		v.VideoID = rec.ID
		saved++
	}
	slog.InfoContext(context.GetContext(), "persisted videos", "saved", saved, "total", len(staged))
	c.Succeed(context, in)
}
