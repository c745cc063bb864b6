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
	"time"
)

// Owner is the internal owner row. Placeholder owners are created when a run
// names an owner identity that does not exist yet.
type Owner struct {
	ID            string    `json:"id"`
	AuthID        string    `json:"authId,omitempty"`
	IsPlaceholder bool      `json:"isPlaceholder"`
	CreatedAt     time.Time `json:"createdAt"`
}

// QueryBatchRecord is the persisted form of one run's generated queries.
type QueryBatchRecord struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"ownerId"`
	BusinessDescription string    `json:"businessDescription"`
	Queries             []string  `json:"queries"`
	CreatedAt           time.Time `json:"createdAt"`
}

// VideoRecord is a persisted staged video.
type VideoRecord struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	QueryBatchID string    `json:"queryBatchId,omitempty"`
	PlatformID   string    `json:"platformId"`
	AuthorHandle string    `json:"authorHandle"`
	Caption      string    `json:"caption"`
	SearchTerm   string    `json:"searchTerm"`
	OriginalURL  string    `json:"originalUrl"`
	MediaURL     string    `json:"mediaUrl"`
	StorageURL   string    `json:"storageUrl"`
	StoragePath  string    `json:"storagePath"`
	Likes        int64     `json:"likes"`
	Comments     int64     `json:"comments"`
	Shares       int64     `json:"shares"`
	Views        int64     `json:"views"`
	Duration     int       `json:"durationSeconds"`
	MusicTitle   string    `json:"musicTitle"`
	CreatedAt    time.Time `json:"createdAt"`
}

// URLs returns the recorded URL columns in the order they are matched against
// staged file names.
func (v *VideoRecord) URLs() []string {
	return []string{v.StorageURL, v.MediaURL, v.OriginalURL}
}

// AnalysisRecord is a persisted video analysis.
type AnalysisRecord struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	VideoAnalysis
}

// StrategyRecord is a persisted strategy document.
type StrategyRecord struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	QueryBatchID string    `json:"queryBatchId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Strategy
}

// AnalysisRow is the BigQuery analytics row written for every accepted
// analysis.
type AnalysisRow struct {
	RunID          string    `json:"run_id" bigquery:"run_id"`
	OwnerID        string    `json:"owner_id" bigquery:"owner_id"`
	PlatformID     string    `json:"platform_id" bigquery:"platform_id"`
	SearchTerm     string    `json:"search_term" bigquery:"search_term"`
	StorageURL     string    `json:"storage_url" bigquery:"storage_url"`
	Likes          int64     `json:"likes" bigquery:"likes"`
	Comments       int64     `json:"comments" bigquery:"comments"`
	Shares         int64     `json:"shares" bigquery:"shares"`
	Views          int64     `json:"views" bigquery:"views"`
	Summary        string    `json:"summary" bigquery:"summary"`
	ContentStyle   string    `json:"content_style" bigquery:"content_style"`
	Hooks          []string  `json:"hooks" bigquery:"hooks"`
	CallsToAction  []string  `json:"calls_to_action" bigquery:"calls_to_action"`
	SuccessFactors []string  `json:"success_factors" bigquery:"success_factors"`
	CreateDate     time.Time `json:"create_date" bigquery:"create_date"`
}

// NewAnalysisRow flattens an analyzed video into its analytics row.
func NewAnalysisRow(runID string, ownerID string, in *AnalyzedVideo) *AnalysisRow {
	row := &AnalysisRow{
		RunID:      runID,
		OwnerID:    ownerID,
		CreateDate: time.Now(),
	}
	if in.Video != nil {
		row.PlatformID = in.Video.PlatformID
		row.SearchTerm = in.Video.SearchTerm
		row.StorageURL = in.Video.StorageURL
		row.Likes = in.Video.Engagement.Likes
		row.Comments = in.Video.Engagement.Comments
		row.Shares = in.Video.Engagement.Shares
		row.Views = in.Video.Engagement.Views
	}
	if in.Analysis != nil {
		row.Summary = in.Analysis.Summary
		row.ContentStyle = in.Analysis.ContentStyle
		row.Hooks = nonNil(in.Analysis.Hooks)
		row.CallsToAction = nonNil(in.Analysis.CallsToAction)
		row.SuccessFactors = nonNil(in.Analysis.SuccessFactors)
	}
	return row
}

// StyleCount is one row of the per-owner content style history.
type StyleCount struct {
	ContentStyle string  `json:"content_style" bigquery:"content_style"`
	Videos       int64   `json:"videos" bigquery:"videos"`
	AvgViews     float64 `json:"avg_views" bigquery:"avg_views"`
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
