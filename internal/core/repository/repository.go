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
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// Repository is the persistence port used by the pipeline.
type Repository interface {
	ResolveOwner(ctx context.Context, ref string) (*model.Owner, error)
	SaveQueryBatch(ctx context.Context, ownerID string, businessDescription string, queries []string) (*model.QueryBatchRecord, error)
	SaveVideo(ctx context.Context, ownerID string, batchID string, video *model.StagedVideo) (*model.VideoRecord, error)
	SaveAnalysis(ctx context.Context, ownerID string, videoID string, analysis *model.VideoAnalysis) (*model.AnalysisRecord, error)
	SaveStrategy(ctx context.Context, ownerID string, batchID string, strategy *model.Strategy) (*model.StrategyRecord, error)
	ListVideos(ctx context.Context, ownerID string, limit int) ([]*model.VideoRecord, error)
	FindVideoByStagedFile(ctx context.Context, stagedPath string) (*model.VideoRecord, error)
	UpdateVideoStorage(ctx context.Context, videoID string, storageURL string, storagePath string) error
}

// PostgresRepository implements Repository with pgx.
type PostgresRepository struct {
	db Querier
}

func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const ownerColumns = `id::text, COALESCE(auth_id, ''), is_placeholder, created_at`

func scanOwner(row pgx.Row) (*model.Owner, error) {
	owner := &model.Owner{}
	err := row.Scan(&owner.ID, &owner.AuthID, &owner.IsPlaceholder, &owner.CreatedAt)
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// ResolveOwner maps an owner reference to an owner row. The reference is
// first looked up as an auth identity, then as a primary key when it is a
// UUID. When neither matches, a placeholder owner carrying the reference as
// its auth identity is created. Only a failed placeholder insert is an error,
// and it wraps model.ErrMissingReference.
func (r *PostgresRepository) ResolveOwner(ctx context.Context, ref string) (*model.Owner, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty owner reference", model.ErrMissingReference)
	}

	owner, err := scanOwner(r.db.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE auth_id = $1`, ref))
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up owner by auth identity: %w", err)
	}

	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		owner, err = scanOwner(r.db.QueryRow(ctx, `SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id.String()))
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up owner by id: %w", err)
		}
	}

	owner, err = scanOwner(r.db.QueryRow(ctx, `
		INSERT INTO owners (id, auth_id, is_placeholder)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (auth_id) DO UPDATE SET auth_id = EXCLUDED.auth_id
		RETURNING `+ownerColumns, uuid.NewString(), ref))
	if err != nil {
		return nil, fmt.Errorf("%w: placeholder owner for %q: %v", model.ErrMissingReference, ref, err)
	}
	return owner, nil
}

// readBack maps an empty RETURNING result to model.ErrNoRowReturned.
func readBack(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNoRowReturned, table)
	}
	return fmt.Errorf("failed to insert into %s: %w", table, err)
}

// nullable turns an empty id into SQL NULL.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func (r *PostgresRepository) SaveQueryBatch(ctx context.Context, ownerID string, businessDescription string, queries []string) (*model.QueryBatchRecord, error) {
	rec := &model.QueryBatchRecord{OwnerID: ownerID, BusinessDescription: businessDescription, Queries: nonNil(queries)}
	err := r.db.QueryRow(ctx, `
		INSERT INTO trend_queries (id, owner_id, business_description, queries)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at`,
		uuid.NewString(), ownerID, businessDescription, rec.Queries,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err := readBack("trend_queries", err); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepository) SaveVideo(ctx context.Context, ownerID string, batchID string, video *model.StagedVideo) (*model.VideoRecord, error) {
	rec := &model.VideoRecord{
		OwnerID:      ownerID,
		QueryBatchID: batchID,
		PlatformID:   video.PlatformID,
		AuthorHandle: video.AuthorHandle,
		Caption:      video.Caption,
		SearchTerm:   video.SearchTerm,
		OriginalURL:  video.OriginalURL,
		MediaURL:     video.MediaURL,
		StorageURL:   video.StorageURL,
		StoragePath:  video.StoragePath,
		Likes:        video.Engagement.Likes,
		Comments:     video.Engagement.Comments,
		Shares:       video.Engagement.Shares,
		Views:        video.Engagement.Views,
		Duration:     video.DurationSeconds,
		MusicTitle:   video.MusicTitle,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO videos (id, owner_id, query_batch_id, platform_id, author_handle, caption, search_term,
			original_url, media_url, storage_url, storage_path, likes, comments, shares, views,
			duration_seconds, music_title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id::text, created_at`,
		uuid.NewString(), ownerID, nullable(batchID), rec.PlatformID, rec.AuthorHandle, rec.Caption, rec.SearchTerm,
		rec.OriginalURL, rec.MediaURL, rec.StorageURL, rec.StoragePath, rec.Likes, rec.Comments, rec.Shares, rec.Views,
		rec.Duration, rec.MusicTitle,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err := readBack("videos", err); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepository) SaveAnalysis(ctx context.Context, ownerID string, videoID string, analysis *model.VideoAnalysis) (*model.AnalysisRecord, error) {
	rec := &model.AnalysisRecord{VideoID: videoID, OwnerID: ownerID, VideoAnalysis: *analysis}
	err := r.db.QueryRow(ctx, `
		INSERT INTO video_analyses (id, video_id, owner_id, summary, hooks, calls_to_action, content_style,
			success_factors, transcript)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at`,
		uuid.NewString(), videoID, ownerID, analysis.Summary, nonNil(analysis.Hooks), nonNil(analysis.CallsToAction),
		analysis.ContentStyle, nonNil(analysis.SuccessFactors), analysis.Transcript,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err := readBack("video_analyses", err); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepository) SaveStrategy(ctx context.Context, ownerID string, batchID string, strategy *model.Strategy) (*model.StrategyRecord, error) {
	rec := &model.StrategyRecord{OwnerID: ownerID, QueryBatchID: batchID, Strategy: *strategy}
	err := r.db.QueryRow(ctx, `
		INSERT INTO strategies (id, owner_id, query_batch_id, business_description, observations, key_takeaways,
			sample_script, technical_specs, content_themes, hashtag_strategy, posting_frequency, raw_content,
			parse_mode, video_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id::text, created_at`,
		uuid.NewString(), ownerID, nullable(batchID), strategy.BusinessDescription, strategy.Observations,
		strategy.KeyTakeaways, strategy.SampleScript, strategy.TechnicalSpecs, nonNil(strategy.ContentThemes),
		strategy.HashtagStrategy, strategy.PostingFrequency, strategy.RawContent, strategy.ParseMode, strategy.VideoCount,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err := readBack("strategies", err); err != nil {
		return nil, err
	}
	rec.Strategy.ID = rec.ID
	rec.Strategy.CreatedAt = rec.CreatedAt
	return rec, nil
}

const videoColumns = `id::text, owner_id::text, COALESCE(query_batch_id::text, ''), platform_id, author_handle,
	caption, search_term, original_url, media_url, storage_url, storage_path, likes, comments, shares, views,
	duration_seconds, music_title, created_at`

// ListVideos returns the newest videos first. An empty ownerID lists every
// owner's videos.
func (r *PostgresRepository) ListVideos(ctx context.Context, ownerID string, limit int) ([]*model.VideoRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows pgx.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = r.db.Query(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+videoColumns+` FROM videos WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`, ownerID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return scanVideos(rows)
}

func scanVideos(rows pgx.Rows) ([]*model.VideoRecord, error) {
	defer rows.Close()
	out := make([]*model.VideoRecord, 0)
	for rows.Next() {
		v := &model.VideoRecord{}
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.QueryBatchID, &v.PlatformID, &v.AuthorHandle,
			&v.Caption, &v.SearchTerm, &v.OriginalURL, &v.MediaURL, &v.StorageURL, &v.StoragePath,
			&v.Likes, &v.Comments, &v.Shares, &v.Views, &v.Duration, &v.MusicTitle, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindVideoByStagedFile searches every video row for one that references
// stagedPath, by storage path, by the full path inside a URL or by its last
// segment inside a URL. It returns nil when no row does. strpos is used
// instead of LIKE so underscores and percent signs in names match literally.
func (r *PostgresRepository) FindVideoByStagedFile(ctx context.Context, stagedPath string) (*model.VideoRecord, error) {
	stagedPath = strings.TrimSpace(stagedPath)
	if stagedPath == "" {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+videoColumns+` FROM videos
		WHERE storage_path = $1
			OR strpos(storage_url, $2) > 0 OR strpos(media_url, $2) > 0 OR strpos(original_url, $2) > 0
		ORDER BY (storage_path = $1) DESC, (strpos(storage_url, $1) + strpos(media_url, $1) + strpos(original_url, $1) > 0) DESC, created_at DESC
		LIMIT 50`, stagedPath, path.Base(stagedPath))
	if err != nil {
		return nil, fmt.Errorf("failed to find video for %s: %w", stagedPath, err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, err
	}
	return MatchStagedFile(stagedPath, videos), nil
}

func (r *PostgresRepository) UpdateVideoStorage(ctx context.Context, videoID string, storageURL string, storagePath string) error {
	tag, err := r.db.Exec(ctx, `UPDATE videos SET storage_url = $1, storage_path = $2 WHERE id = $3`, storageURL, storagePath, videoID)
	if err != nil {
		return fmt.Errorf("failed to update video %s: %w", videoID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: video %s", model.ErrNoRowReturned, videoID)
	}
	return nil
}
