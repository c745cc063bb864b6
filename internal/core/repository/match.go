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

package repository

import (
	"path"
	"strings"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// MatchStagedFile finds the row that references a staged object. Rows whose
// storage path equals stagedPath, or whose URLs contain it, win. Otherwise the
// last path segment of stagedPath is searched for in the URLs. Earlier rows
// win ties.
func MatchStagedFile(stagedPath string, videos []*model.VideoRecord) *model.VideoRecord {
	stagedPath = strings.TrimSpace(stagedPath)
	if stagedPath == "" {
		return nil
	}
	for _, v := range videos {
		if v.StoragePath == stagedPath {
			return v
		}
		for _, u := range v.URLs() {
			if u != "" && strings.Contains(u, stagedPath) {
				return v
			}
		}
	}
	segment := path.Base(stagedPath)
	if segment == "." || segment == "/" || segment == stagedPath {
		return nil
	}
	for _, v := range videos {
		for _, u := range v.URLs() {
			if u != "" && strings.Contains(u, segment) {
				return v
			}
		}
	}
	return nil
}
