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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// ParseRequest turns the raw trigger of a run into a validated
// model.WorkflowRequest. The input may be a JSON string or []byte (a Pub/Sub
// message) or an already decoded *model.WorkflowRequest (the HTTP handler).
type ParseRequest struct {
	cor.BaseCommand
	defaults cloud.WorkflowDefaults
}

func NewParseRequest(name string, defaults cloud.WorkflowDefaults) *ParseRequest {
	return &ParseRequest{BaseCommand: *cor.NewBaseCommand(name), defaults: defaults}
}

func (c *ParseRequest) decode(in interface{}) (*model.WorkflowRequest, error) {
	switch t := in.(type) {
	case *model.WorkflowRequest:
		cp := *t
		return &cp, nil
	case string:
		return c.decode([]byte(t))
	case []byte:
		out := &model.WorkflowRequest{}
		if err := json.Unmarshal(t, out); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow request: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported workflow request type %T", in)
	}
}

// Execute applies the per-run defaults: a fresh run id, the configured
// videos per query, capped at the configured maximum.
func (c *ParseRequest) Execute(context cor.Context) {
	req, err := c.decode(context.Get(c.GetInputParam()))
	if err != nil {
		c.Fail(context, err)
		return
	}
	req.BusinessDescription = strings.TrimSpace(req.BusinessDescription)
	if req.BusinessDescription == "" {
		c.Fail(context, fmt.Errorf("businessDescription is required"))
		return
	}
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.VideosPerQuery <= 0 {
		req.VideosPerQuery = c.defaults.VideosPerQuery
	}
	if c.defaults.MaxVideosPerQuery > 0 && req.VideosPerQuery > c.defaults.MaxVideosPerQuery {
		req.VideosPerQuery = c.defaults.MaxVideosPerQuery
	}
	if req.VideosPerQuery <= 0 {
		req.VideosPerQuery = 1
	}
	context.Add(ParamRequest, req)
	c.Succeed(context, req)
}
