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
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// AnalyzeVideoRequest describes a video that is already reachable by the
// analysis provider.
type AnalyzeVideoRequest struct {
	VideoURL            string                 `json:"videoUrl" binding:"required"`
	MimeType            string                 `json:"mimeType"`
	Caption             string                 `json:"caption"`
	AuthorHandle        string                 `json:"authorHandle"`
	SearchTerm          string                 `json:"searchTerm"`
	DurationSeconds     int                    `json:"durationSeconds"`
	Engagement          model.EngagementCounts `json:"engagement"`
	BusinessDescription string                 `json:"businessDescription"`
}

func (r *AnalyzeVideoRequest) video() *model.StagedVideo {
	mime := r.MimeType
	if mime == "" {
		mime = "video/mp4"
	}
	v := &model.StagedVideo{StorageURL: r.VideoURL, ContentType: mime}
	if strings.HasPrefix(r.VideoURL, "gs://") {
		v.StorageURI = r.VideoURL
	}
	v.Caption = r.Caption
	v.AuthorHandle = r.AuthorHandle
	v.SearchTerm = r.SearchTerm
	v.DurationSeconds = r.DurationSeconds
	v.Engagement = r.Engagement
	v.OriginalURL = r.VideoURL
	v.MediaURL = r.VideoURL
	return v
}

// VideoRouter registers the streaming analysis endpoint. The response is a
// server-sent event stream: any number of "chunk" events, then exactly one
// "complete" (the parsed analysis) or "error" event.
func VideoRouter(r *gin.RouterGroup, s *Server) {
	videos := r.Group("/videos")
	{
		videos.POST("/analyze", func(c *gin.Context) {
			req := &AnalyzeVideoRequest{}
			if err := c.ShouldBindJSON(req); err != nil {
				abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
				return
			}
			ctx := c.Request.Context()

			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)

			analysis, err := s.Analyzer.AnalyzeStream(ctx, req.video(), req.BusinessDescription, func(chunk string) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				c.SSEvent("chunk", chunk)
				c.Writer.Flush()
				return nil
			})
			if ctx.Err() != nil {
				// Client went away; nothing left to tell it.
				slog.InfoContext(ctx, "video analysis stream abandoned", "video_url", req.VideoURL)
				return
			}
			if err != nil {
				_, code := statusFor(err)
				slog.ErrorContext(ctx, "video analysis failed", "video_url", req.VideoURL, "error", err)
				c.SSEvent("error", errorBody{Code: code, Message: err.Error()})
				c.Writer.Flush()
				return
			}
			c.SSEvent("complete", analysis)
			c.Writer.Flush()
		})
	}
}
