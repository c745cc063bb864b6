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

// Package model holds the data structures that flow through a trend strategy
// run: search queries, candidate and staged videos, per-video analyses and the
// final strategy document. Everything here lives for the duration of a single
// run unless the repository gives it a row.
package model

import (
	"time"
)

// WorkflowRequest is the entry payload of a run, received over HTTP or Pub/Sub.
type WorkflowRequest struct {
	RunID               string `json:"runId,omitempty"`
	BusinessDescription string `json:"businessDescription"`
	OwnerID             string `json:"ownerId,omitempty"`
	VideosPerQuery      int    `json:"videosPerQuery,omitempty"`
}

// HasOwner reports whether the caller opted into persistence.
func (r *WorkflowRequest) HasOwner() bool {
	return len(r.OwnerID) > 0
}

// SearchQuery is one short search term produced from the business description.
type SearchQuery struct {
	Text    string `json:"text"`
	OwnerID string `json:"ownerId,omitempty"`
}

// SearchFilters narrows a search request. Zero values mean "provider default".
type SearchFilters struct {
	SortMode          int    `json:"sortMode"`
	RecencyWindowDays int    `json:"recencyWindowDays"`
	RegionCode        string `json:"regionCode,omitempty"`
}

// EngagementCounts are the public counters reported by the platform.
type EngagementCounts struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Views    int64 `json:"views"`
}

// CandidateVideo is a search hit before anything has been downloaded.
type CandidateVideo struct {
	PlatformID      string           `json:"platformId"`
	AuthorHandle    string           `json:"authorHandle"`
	Caption         string           `json:"caption"`
	Engagement      EngagementCounts `json:"engagement"`
	OriginalURL     string           `json:"originalUrl"`
	MediaURL        string           `json:"mediaUrl,omitempty"`
	DurationSeconds int              `json:"durationSeconds"`
	MusicTitle      string           `json:"musicTitle,omitempty"`
	UploadedAt      *time.Time       `json:"uploadedAt,omitempty"`
	SearchTerm      string           `json:"searchTerm"`
}

// HasMedia reports whether the candidate can be downloaded at all.
func (c *CandidateVideo) HasMedia() bool {
	return len(c.MediaURL) > 0
}

// StagedVideo is a candidate whose binary now lives in durable storage. The
// storage layer owns the object; the pipeline only keeps its coordinates.
type StagedVideo struct {
	CandidateVideo
	StorageURL  string `json:"storageUrl"`
	StoragePath string `json:"storagePath"`
	StorageURI  string `json:"storageUri"`
	ContentType string `json:"contentType"`
	BatchID     string `json:"batchId"`
	VideoID     string `json:"videoId,omitempty"`
}

// VideoAnalysis is the fixed schema the multimodal model must produce.
type VideoAnalysis struct {
	Summary        string   `json:"summary"`
	Hooks          []string `json:"hooks"`
	CallsToAction  []string `json:"callsToAction"`
	ContentStyle   string   `json:"contentStyle"`
	SuccessFactors []string `json:"successFactors"`
	Transcript     string   `json:"transcript"`
}

// AnalyzedVideo pairs a staged video with its accepted analysis.
type AnalyzedVideo struct {
	Video      *StagedVideo   `json:"video"`
	Analysis   *VideoAnalysis `json:"analysis"`
	AnalysisID string         `json:"analysisId,omitempty"`
}

// VideoDigest is the reduced view of an analyzed video that is sent to the
// text model during synthesis.
type VideoDigest struct {
	SearchTerm  string `json:"searchTerm"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Strategy parse modes.
const (
	ParseModeSections = "sections"
	ParseModeRaw      = "raw"
)

// Strategy is the aggregate marketing document built once per run.
// RawContent always carries the model text verbatim; ParseMode tells callers
// whether the named sections were extracted or the text was folded into
// Observations.
type Strategy struct {
	ID                  string    `json:"id,omitempty"`
	BusinessDescription string    `json:"businessDescription"`
	Observations        string    `json:"observations"`
	KeyTakeaways        string    `json:"keyTakeaways"`
	SampleScript        string    `json:"sampleScript"`
	TechnicalSpecs      string    `json:"technicalSpecs"`
	ContentThemes       []string  `json:"contentThemes"`
	HashtagStrategy     string    `json:"hashtagStrategy"`
	PostingFrequency    string    `json:"postingFrequency"`
	RawContent          string    `json:"rawContent"`
	ParseMode           string    `json:"parseMode"`
	VideoCount          int       `json:"videoCount"`
	CreatedAt           time.Time `json:"createdAt"`
}

// WorkflowResult is what a completed run returns to its caller.
type WorkflowResult struct {
	RunID    string           `json:"runId"`
	Stage    Stage            `json:"stage"`
	Queries  []*SearchQuery   `json:"queries"`
	Counts   map[Stage]int    `json:"counts"`
	Strategy *Strategy        `json:"strategy"`
	Skipped  []*SkippedVideo  `json:"skipped,omitempty"`
	Request  *WorkflowRequest `json:"request"`
}

// SkippedVideo records a per-item failure that did not stop the batch.
type SkippedVideo struct {
	PlatformID string `json:"platformId"`
	Stage      Stage  `json:"stage"`
	Reason     string `json:"reason"`
}
