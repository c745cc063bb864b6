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

package model

import (
	"encoding/json"
	"time"
)

// Stage is a step of the run state machine. Stages only move forward.
type Stage string

const (
	StagePending          Stage = "PENDING"
	StageQueriesGenerated Stage = "QUERIES_GENERATED"
	StageVideosScraped    Stage = "VIDEOS_SCRAPED"
	StageVideosAnalyzed   Stage = "VIDEOS_ANALYZED"
	StageStrategyBuilt    Stage = "STRATEGY_BUILT"
	StageFailed           Stage = "FAILED"
)

var stageOrder = map[Stage]int{
	StagePending:          0,
	StageQueriesGenerated: 1,
	StageVideosScraped:    2,
	StageVideosAnalyzed:   3,
	StageStrategyBuilt:    4,
}

// CanAdvanceTo reports whether moving from s to next is a legal forward
// transition. Any non-terminal stage may move to StageFailed.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if next == StageFailed {
		return s != StageStrategyBuilt && s != StageFailed
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	to, ok := stageOrder[next]
	return ok && to == from+1
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageStrategyBuilt || s == StageFailed
}

// ProgressEvent is emitted once per completed stage.
type ProgressEvent struct {
	RunID   string    `json:"runId"`
	Stage   Stage     `json:"stage"`
	Count   int       `json:"count"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Marshal renders the event as JSON for the wire.
func (e *ProgressEvent) Marshal() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// CollectionSize returns the number of items a stage produced. Non-collection
// values (a single strategy) count as one; nil counts as zero.
func CollectionSize(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case []*SearchQuery:
		return len(t)
	case []*StagedVideo:
		return len(t)
	case []*AnalyzedVideo:
		return len(t)
	case []string:
		return len(t)
	case *Strategy:
		if t == nil {
			return 0
		}
		return 1
	default:
		return 1
	}
}
