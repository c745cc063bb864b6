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
	goctx "context"
	"log/slog"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// RowInserter is the part of *bigquery.Inserter the export needs.
type RowInserter interface {
	Put(ctx goctx.Context, src interface{}) error
}

// AnalysesToBigQuery streams one model.AnalysisRow per accepted analysis into
// the analytics table.
type AnalysesToBigQuery struct {
	cor.BaseCommand
	inserter RowInserter
}

func NewAnalysesToBigQuery(name string, inserter RowInserter) *AnalysesToBigQuery {
	return &AnalysesToBigQuery{BaseCommand: *cor.NewBaseCommand(name), inserter: inserter}
}

func (c *AnalysesToBigQuery) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam())
	analyses, ok := in.([]*model.AnalyzedVideo)
	req := GetRequest(context)
	if c.inserter == nil || !ok || req == nil || len(analyses) == 0 {
		context.Add(cor.CtxOut, in)
		return
	}
	rows := make([]*model.AnalysisRow, 0, len(analyses))
	for _, a := range analyses {
		rows = append(rows, model.NewAnalysisRow(req.RunID, GetOwnerID(context), a))
	}
	if err := c.inserter.Put(context.GetContext(), rows); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.ErrorContext(context.GetContext(), "failed to write analyses to BigQuery", "run_id", req.RunID, "rows", len(rows), "error", err)
		context.Add(cor.CtxOut, in)
		return
	}
	slog.InfoContext(context.GetContext(), "exported analyses", "run_id", req.RunID, "rows", len(rows))
	c.Succeed(context, in)
}
