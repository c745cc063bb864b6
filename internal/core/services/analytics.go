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

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// AnalyticsService reads the analysis rows exported to BigQuery.
type AnalyticsService struct {
	BigqueryClient *bigquery.Client
	DatasetName    string
	AnalysesTable  string
}

// GetFQN returns the analyses table as project.dataset.table.
func (s *AnalyticsService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.AnalysesTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// StyleHistory returns the owner's most frequent content styles.
func (s *AnalyticsService) StyleHistory(ctx context.Context, ownerID string, limit int) ([]*model.StyleCount, error) {
	if limit <= 0 {
		limit = 10
	}
	q := s.BigqueryClient.Query(fmt.Sprintf(QryStyleHistory, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "limit", Value: limit},
	}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	out := make([]*model.StyleCount, 0)
	for {
		r := &model.StyleCount{}
		err := itr.Next(r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// RunAnalyses returns the rows exported for runID.
func (s *AnalyticsService) RunAnalyses(ctx context.Context, runID string) ([]*model.AnalysisRow, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryRunAnalyses, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "run_id", Value: runID}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	out := make([]*model.AnalysisRow, 0)
	for {
		r := &model.AnalysisRow{}
		err := itr.Next(r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
