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

// Package commands holds the cor.Command implementations that make up a trend
// strategy run. Stage commands read their primary input from cor.CtxIn and
// hand their output on through cor.CtxOut; they also publish it under one of
// the named parameters below so later commands and the workflow can reach
// values produced several steps back.
//
// Side-effect commands (persistence and analytics export) are best-effort:
// they log failures, never record an error on the context, and pass their
// input through unchanged.
package commands

import (
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// Context parameter names shared by the commands of a run.
const (
	ParamRequest      = "__REQUEST__"       // *model.WorkflowRequest
	ParamOwner        = "__OWNER__"         // *model.Owner, set only when resolved
	ParamQueryBatchID = "__QUERY_BATCH_ID__" // string
	ParamQueries      = "__QUERIES__"       // []*model.SearchQuery
	ParamStaged       = "__STAGED__"        // []*model.StagedVideo
	ParamAnalyses     = "__ANALYSES__"      // []*model.AnalyzedVideo
	ParamSkipped      = "__SKIPPED__"       // []*model.SkippedVideo
	ParamStrategy     = "__STRATEGY__"      // *model.Strategy
)

// GetRequest returns the parsed request of the run, or nil.
func GetRequest(context cor.Context) *model.WorkflowRequest {
	req, _ := context.Get(ParamRequest).(*model.WorkflowRequest)
	return req
}

// GetOwnerID returns the resolved owner row id, or "" when the run is not
// persisted.
func GetOwnerID(context cor.Context) string {
	if owner, ok := context.Get(ParamOwner).(*model.Owner); ok && owner != nil {
		return owner.ID
	}
	return ""
}

// GetQueryBatchID returns the persisted query batch id, or "".
func GetQueryBatchID(context cor.Context) string {
	id, _ := context.Get(ParamQueryBatchID).(string)
	return id
}

// GetSkipped returns the videos dropped so far.
func GetSkipped(context cor.Context) []*model.SkippedVideo {
	skipped, _ := context.Get(ParamSkipped).([]*model.SkippedVideo)
	return skipped
}

// addSkipped appends to the skipped list. Callers run on the chain goroutine.
func addSkipped(context cor.Context, more ...*model.SkippedVideo) {
	if len(more) == 0 {
		return
	}
	context.Add(ParamSkipped, append(GetSkipped(context), more...))
}
