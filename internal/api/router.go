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

// Package api exposes the HTTP surface of the server: the synchronous
// workflow endpoint, the streaming single video analysis, the websocket
// progress relay and the style analytics read.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// WorkflowRunner runs one request to completion.
type WorkflowRunner interface {
	Run(ctx context.Context, req *model.WorkflowRequest) (*model.WorkflowResult, error)
}

// VideoAnalyzer streams the analysis of a single video.
type VideoAnalyzer interface {
	AnalyzeStream(ctx context.Context, video *model.StagedVideo, businessDescription string, onChunk func(string) error) (*model.VideoAnalysis, error)
}

// StyleReader returns the content style history of an owner.
type StyleReader interface {
	StyleHistory(ctx context.Context, ownerID string, limit int) ([]*model.StyleCount, error)
}

// Server holds the collaborators of the handlers. Analytics and Subscriber
// may be nil, in which case their routes answer 503.
type Server struct {
	Workflows  WorkflowRunner
	Analyzer   VideoAnalyzer
	Subscriber cloud.ProgressSubscriber
	Analytics  StyleReader
	Identity   *OwnerIdentity
}

// NewRouter builds the gin engine with tracing and CORS applied.
func NewRouter(s *Server, serviceName string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	if s.Identity != nil {
		apiV1.Use(s.Identity.Middleware())
	}
	{
		WorkflowRouter(apiV1, s)
		VideoRouter(apiV1, s)
		AnalyticsRouter(apiV1, s)
	}
	return r
}
