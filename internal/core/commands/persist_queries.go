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

// PersistQueries stores the generated queries as one query batch for the
// resolved owner. Its id becomes the batch id of every staged video.
type PersistQueries struct {
	cor.BaseCommand
	repo repository.Repository
}

func NewPersistQueries(name string, repo repository.Repository) *PersistQueries {
	return &PersistQueries{BaseCommand: *cor.NewBaseCommand(name), repo: repo}
}

func (c *PersistQueries) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam())
	ownerID := GetOwnerID(context)
	queries, ok := in.([]*model.SearchQuery)
	if c.repo == nil || ownerID == "" || !ok {
		context.Add(cor.CtxOut, in)
		return
	}
	terms := make([]string, 0, len(queries))
	for _, q := range queries {
		terms = append(terms, q.Text)
	}
	rec, err := c.repo.SaveQueryBatch(context.GetContext(), ownerID, GetRequest(context).BusinessDescription, terms)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.ErrorContext(context.GetContext(), "failed to persist query batch", "owner_id", ownerID, "error", err)
		context.Add(cor.CtxOut, in)
		return
	}
	context.Add(ParamQueryBatchID, rec.ID)
	c.Succeed(context, in)
}
