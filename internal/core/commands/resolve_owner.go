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

// OwnerResolver maps an owner identity to an owner row.
type OwnerResolver interface {
	ResolveOwner(ctx goctx.Context, ref string) (*model.Owner, error)
}

// ResolveOwner looks up (or creates a placeholder for) the owner named in the
// request. Runs without an owner, and runs whose owner cannot be resolved,
// carry on without persistence.
type ResolveOwner struct {
	cor.BaseCommand
	owners OwnerResolver
}

func NewResolveOwner(name string, owners OwnerResolver) *ResolveOwner {
	return &ResolveOwner{BaseCommand: *cor.NewBaseCommand(name), owners: owners}
}

func (c *ResolveOwner) Execute(context cor.Context) {
	in := context.Get(c.GetInputParam())
	req := GetRequest(context)
	if c.owners == nil || req == nil || !req.HasOwner() {
		c.Succeed(context, in)
		return
	}
	owner, err := c.owners.ResolveOwner(context.GetContext(), req.OwnerID)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.ErrorContext(context.GetContext(), "failed to resolve owner, run will not be persisted",
			"run_id", req.RunID, "owner", req.OwnerID, "error", err)
		context.Add(cor.CtxOut, in)
		return
	}
	if owner.IsPlaceholder {
		slog.InfoContext(context.GetContext(), "using placeholder owner", "run_id", req.RunID, "owner_id", owner.ID)
	}
	context.Add(ParamOwner, owner)
	c.Succeed(context, in)
}
