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

package test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/repository"
)

// FakeObjectStore keeps objects in memory.
type FakeObjectStore struct {
	mu      sync.Mutex
	Objects map[string]cloud.StoredObject
	Bodies  map[string][]byte
	PutErr  error
}

func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{
		Objects: make(map[string]cloud.StoredObject),
		Bodies:  make(map[string][]byte),
	}
}

func (f *FakeObjectStore) Put(_ context.Context, path string, contentType string, metadata map[string]string, body io.Reader) (string, error) {
	if f.PutErr != nil {
		return "", f.PutErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[path] = cloud.StoredObject{
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(b)),
		Created:     time.Now(),
		Metadata:    metadata,
	}
	f.Bodies[path] = b
	return f.ReadURL(context.Background(), path)
}

// Add registers an object without a body, for listing tests.
func (f *FakeObjectStore) Add(path string, created time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[path] = cloud.StoredObject{Path: path, ContentType: "video/mp4", Created: created}
}

func (f *FakeObjectStore) List(_ context.Context, prefix string) ([]cloud.StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cloud.StoredObject, 0, len(f.Objects))
	for path, o := range f.Objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FakeObjectStore) Delete(_ context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.Objects, p)
		delete(f.Bodies, p)
	}
	return nil
}

func (f *FakeObjectStore) ReadURL(_ context.Context, path string) (string, error) {
	return "https://storage.test/bucket/" + path, nil
}

func (f *FakeObjectStore) URI(path string) string {
	return "gs://bucket/" + path
}

// Paths returns the stored paths in lexical order.
func (f *FakeObjectStore) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Objects))
	for p := range f.Objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FakeTextModel answers with Respond, or with the queued Answers in order.
type FakeTextModel struct {
	mu      sync.Mutex
	Answers []string
	Respond func(prompt *cloud.TextPrompt) (string, error)
	Prompts []*cloud.TextPrompt
}

func (f *FakeTextModel) GenerateText(_ context.Context, prompt *cloud.TextPrompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	if f.Respond != nil {
		return f.Respond(prompt)
	}
	if len(f.Answers) == 0 {
		return "", fmt.Errorf("%w: no answer queued", model.ErrUpstreamUnavailable)
	}
	out := f.Answers[0]
	f.Answers = f.Answers[1:]
	return out, nil
}

// FakeVideoModel answers every prompt with Respond. StreamVideo emits the
// answer in ChunkSize pieces.
type FakeVideoModel struct {
	mu        sync.Mutex
	Respond   func(ctx context.Context, prompt *cloud.VideoPrompt) (string, error)
	ChunkSize int
	Prompts   []*cloud.VideoPrompt
}

func (f *FakeVideoModel) AnalyzeVideo(ctx context.Context, prompt *cloud.VideoPrompt) (string, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	f.mu.Unlock()
	return f.Respond(ctx, prompt)
}

func (f *FakeVideoModel) StreamVideo(ctx context.Context, prompt *cloud.VideoPrompt, onChunk func(string) error) (string, error) {
	out, err := f.AnalyzeVideo(ctx, prompt)
	if err != nil {
		return "", err
	}
	size := f.ChunkSize
	if size <= 0 {
		size = 32
	}
	for i := 0; i < len(out); i += size {
		end := i + size
		if end > len(out) {
			end = len(out)
		}
		if err := onChunk(out[i:end]); err != nil {
			return "", err
		}
	}
	return out, nil
}

// FakeRepository is an in-memory repository.Repository.
type FakeRepository struct {
	mu         sync.Mutex
	Owners     map[string]*model.Owner
	Batches    []*model.QueryBatchRecord
	Videos     []*model.VideoRecord
	Analyses   []*model.AnalysisRecord
	Strategies []*model.StrategyRecord

	// Fail makes the named operation return an error, e.g. "SaveStrategy".
	Fail map[string]error
}

var _ repository.Repository = (*FakeRepository)(nil)

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{Owners: make(map[string]*model.Owner), Fail: make(map[string]error)}
}

func (f *FakeRepository) fail(op string) error {
	if err, ok := f.Fail[op]; ok {
		return err
	}
	return nil
}

func (f *FakeRepository) ResolveOwner(_ context.Context, ref string) (*model.Owner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ResolveOwner"); err != nil {
		return nil, err
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty owner reference", model.ErrMissingReference)
	}
	for _, o := range f.Owners {
		if o.AuthID == ref || o.ID == ref {
			return o, nil
		}
	}
	o := &model.Owner{ID: uuid.NewString(), AuthID: ref, IsPlaceholder: true, CreatedAt: time.Now()}
	f.Owners[o.ID] = o
	return o, nil
}

func (f *FakeRepository) SaveQueryBatch(_ context.Context, ownerID string, businessDescription string, queries []string) (*model.QueryBatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveQueryBatch"); err != nil {
		return nil, err
	}
	rec := &model.QueryBatchRecord{ID: uuid.NewString(), OwnerID: ownerID, BusinessDescription: businessDescription, Queries: queries, CreatedAt: time.Now()}
	f.Batches = append(f.Batches, rec)
	return rec, nil
}

func (f *FakeRepository) SaveVideo(_ context.Context, ownerID string, batchID string, video *model.StagedVideo) (*model.VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveVideo"); err != nil {
		return nil, err
	}
	rec := &model.VideoRecord{
		ID:           uuid.NewString(),
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
		CreatedAt:    time.Now(),
	}
	f.Videos = append(f.Videos, rec)
	return rec, nil
}

func (f *FakeRepository) SaveAnalysis(_ context.Context, ownerID string, videoID string, analysis *model.VideoAnalysis) (*model.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveAnalysis"); err != nil {
		return nil, err
	}
	rec := &model.AnalysisRecord{ID: uuid.NewString(), VideoID: videoID, OwnerID: ownerID, CreatedAt: time.Now(), VideoAnalysis: *analysis}
	f.Analyses = append(f.Analyses, rec)
	return rec, nil
}

func (f *FakeRepository) SaveStrategy(_ context.Context, ownerID string, batchID string, strategy *model.Strategy) (*model.StrategyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SaveStrategy"); err != nil {
		return nil, err
	}
	rec := &model.StrategyRecord{ID: uuid.NewString(), OwnerID: ownerID, QueryBatchID: batchID, CreatedAt: time.Now(), Strategy: *strategy}
	rec.Strategy.ID = rec.ID
	f.Strategies = append(f.Strategies, rec)
	return rec, nil
}

func (f *FakeRepository) ListVideos(_ context.Context, ownerID string, limit int) ([]*model.VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.VideoRecord, 0)
	for _, v := range f.Videos {
		if ownerID != "" && v.OwnerID != ownerID {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FindVideoByStagedFile searches every row regardless of any list limit.
func (f *FakeRepository) FindVideoByStagedFile(ctx context.Context, stagedPath string) (*model.VideoRecord, error) {
	f.mu.Lock()
	err := f.fail("FindVideoByStagedFile")
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	videos, err := f.ListVideos(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	return repository.MatchStagedFile(stagedPath, videos), nil
}

func (f *FakeRepository) UpdateVideoStorage(_ context.Context, videoID string, storageURL string, storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.Videos {
		if v.ID == videoID {
			v.StorageURL = storageURL
			v.StoragePath = storagePath
			return nil
		}
	}
	return fmt.Errorf("%w: video %s", model.ErrNoRowReturned, videoID)
}

// RecordingProgress keeps every reported event.
type RecordingProgress struct {
	mu     sync.Mutex
	Events []*model.ProgressEvent
}

func (r *RecordingProgress) Report(_ context.Context, event *model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Stages returns the stage of every recorded event in order.
func (r *RecordingProgress) Stages() []model.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Stage, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Stage)
	}
	return out
}
