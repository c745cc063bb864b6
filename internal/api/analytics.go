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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AnalyticsRouter registers the read side of the BigQuery export.
func AnalyticsRouter(r *gin.RouterGroup, s *Server) {
	analytics := r.Group("/analytics")
	{
		analytics.GET("/styles", func(c *gin.Context) {
			if s.Analytics == nil {
				abortWithError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "analytics is not configured")
				return
			}
			if s.Identity != nil && callerIdentity(c) == "" {
				abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "a bearer token is required")
				return
			}
			owner, ok := s.resolveOwner(c, c.Query("ownerId"))
			if !ok {
				return
			}
			if owner == "" {
				abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "ownerId is required")
				return
			}
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
			if err != nil {
				limit = 10
			}
			out, err := s.Analytics.StyleHistory(c.Request.Context(), owner, limit)
			if err != nil {
				abortWithError(c, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
