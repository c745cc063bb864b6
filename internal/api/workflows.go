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

package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WorkflowRouter registers the run endpoint and its progress relay.
func WorkflowRouter(r *gin.RouterGroup, s *Server) {
	workflows := r.Group("/workflows")
	{
		workflows.POST("", func(c *gin.Context) {
			req := &model.WorkflowRequest{}
			if err := c.ShouldBindJSON(req); err != nil {
				abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
				return
			}
			if strings.TrimSpace(req.BusinessDescription) == "" {
				abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "businessDescription is required")
				return
			}
			owner, ok := s.resolveOwner(c, req.OwnerID)
			if !ok {
				return
			}
			req.OwnerID = owner

			result, err := s.Workflows.Run(c.Request.Context(), req)
			if err != nil {
				status, code := statusFor(err)
				slog.ErrorContext(c.Request.Context(), "workflow request failed", "status", status, "error", err)
				c.AbortWithStatusJSON(status, gin.H{
					"error":  errorBody{Code: code, Message: err.Error()},
					"result": result,
				})
				return
			}
			c.JSON(http.StatusOK, result)
		})

		workflows.GET("/:runId/events", func(c *gin.Context) {
			if s.Subscriber == nil {
				abortWithError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "progress relay is not configured")
				return
			}
			runID := c.Param("runId")
			ctx, cancel := context.WithCancel(c.Request.Context())
			defer cancel()

			// Subscribe before upgrading so no event published after the
			// handshake is missed.
			events, err := s.Subscriber.Subscribe(ctx, runID)
			if err != nil {
				abortWithError(c, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
				return
			}
			conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
			if err != nil {
				slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
				return
			}
			defer conn.Close()

			// The read loop only notices the client going away.
			go func() {
				defer cancel()
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			}()

			relayEvents(ctx, conn, events)
		})
	}
}

// relayEvents forwards events until a terminal stage, the end of the
// subscription or a write failure.
func relayEvents(ctx context.Context, conn *websocket.Conn, events <-chan *model.ProgressEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				slog.WarnContext(ctx, "failed to relay progress", "run_id", event.RunID, "error", err)
				return
			}
			if event.Stage.Terminal() {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(event.Stage)))
				return
			}
		}
	}
}
