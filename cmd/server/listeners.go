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

package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
)

// WorkflowRequestsTopic is the topic_subscriptions key whose messages are
// workflow request JSON documents.
const WorkflowRequestsTopic = "WorkflowRequests"

// SetupListeners attaches the content strategy workflow to its subscription
// and starts receiving.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients) {
	listener, ok := cloudClients.PubSubListeners[WorkflowRequestsTopic]
	if !ok {
		slog.WarnContext(ctx, "no subscription configured, pub/sub trigger disabled", "topic", WorkflowRequestsTopic)
		return
	}
	listener.SetCommand(state.workflow)
	listener.Listen(ctx)
}

// SetupReconcile schedules the storage reconciliation. The returned cron is
// already started; stop it on shutdown.
func SetupReconcile(ctx context.Context, config *cloud.Config) *cron.Cron {
	if !config.Reconcile.Enabled || state.reconcile == nil {
		slog.InfoContext(ctx, "storage reconciliation disabled")
		return nil
	}
	c := cron.New(cron.WithSeconds())
	if _, err := state.reconcile.Schedule(ctx, c, config.Reconcile.Schedule); err != nil {
		slog.ErrorContext(ctx, "failed to schedule storage reconciliation", "error", err)
		return nil
	}
	c.Start()
	slog.InfoContext(ctx, "storage reconciliation scheduled", "schedule", config.Reconcile.Schedule)
	return c
}
