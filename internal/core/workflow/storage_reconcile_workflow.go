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

package workflow

import (
	goctx "context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/repository"
)

// ReconcileReport summarizes one pass over the staging prefix.
type ReconcileReport struct {
	Scanned    int      `json:"scanned"`
	Matched    int      `json:"matched"`
	Backfilled int      `json:"backfilled"`
	Orphans    []string `json:"orphans"`
	Deleted    int      `json:"deleted"`
}

// StorageReconcileWorkflow walks the staged objects and lines them up with
// the video rows. Rows missing their storage columns are back-filled; objects
// no row references are deleted once they are older than the orphan age. An
// object is only an orphan after a lookup over the whole videos table.
type StorageReconcileWorkflow struct {
	cor.BaseCommand
	store     cloud.ObjectStore
	repo      repository.Repository
	prefix    string
	orphanAge time.Duration
	scanLimit int
	now       func() time.Time
}

func NewStorageReconcileWorkflow(config *cloud.Config, store cloud.ObjectStore, repo repository.Repository) *StorageReconcileWorkflow {
	orphanAge := time.Duration(config.Reconcile.OrphanAgeHours) * time.Hour
	if orphanAge <= 0 {
		orphanAge = 72 * time.Hour
	}
	prefix := strings.Trim(config.Storage.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &StorageReconcileWorkflow{
		BaseCommand: *cor.NewBaseCommand("storage-reconcile-workflow"),
		store:       store,
		repo:        repo,
		prefix:      prefix,
		orphanAge:   orphanAge,
		scanLimit:   config.Reconcile.ScanLimit,
		now:         time.Now,
	}
}

// Execute runs one pass and stores the report as the command output.
func (w *StorageReconcileWorkflow) Execute(context cor.Context) {
	report, err := w.Reconcile(context.GetContext())
	if err != nil {
		w.Fail(context, err)
		return
	}
	w.Succeed(context, report)
}

// Reconcile runs one pass.
func (w *StorageReconcileWorkflow) Reconcile(ctx goctx.Context) (*ReconcileReport, error) {
	objects, err := w.store.List(ctx, w.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged objects: %w", err)
	}
	videos, err := w.repo.ListVideos(ctx, "", w.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	report := &ReconcileReport{Orphans: []string{}}
	cutoff := w.now().Add(-w.orphanAge)
	for _, o := range objects {
		report.Scanned++
		v := repository.MatchStagedFile(o.Path, videos)
		if v == nil {
			// The listing holds only the newest rows; older rows are looked
			// up one object at a time before anything is deleted.
			found, err := w.repo.FindVideoByStagedFile(ctx, o.Path)
			if err != nil {
				slog.ErrorContext(ctx, "failed to look up staged object, keeping it", "path", o.Path, "error", err)
				continue
			}
			v = found
		}
		if v == nil {
			if o.Created.Before(cutoff) {
				report.Orphans = append(report.Orphans, o.Path)
			}
			continue
		}
		report.Matched++
		if v.StoragePath != "" && v.StorageURL != "" {
			continue
		}
		readURL, err := w.store.ReadURL(ctx, o.Path)
		if err != nil {
			slog.ErrorContext(ctx, "failed to build read url", "path", o.Path, "error", err)
			continue
		}
		if err := w.repo.UpdateVideoStorage(ctx, v.ID, readURL, o.Path); err != nil {
			slog.ErrorContext(ctx, "failed to back-fill video storage", "video_id", v.ID, "error", err)
			continue
		}
		v.StorageURL, v.StoragePath = readURL, o.Path
		report.Backfilled++
	}

	if len(report.Orphans) > 0 {
		if err := w.store.Delete(ctx, report.Orphans); err != nil {
			return report, fmt.Errorf("failed to delete orphaned objects: %w", err)
		}
		report.Deleted = len(report.Orphans)
	}
	slog.InfoContext(ctx, "storage reconciled",
		"scanned", report.Scanned, "matched", report.Matched,
		"backfilled", report.Backfilled, "deleted", report.Deleted)
	return report, nil
}

// Schedule registers the pass on c. Overlapping runs are skipped.
func (w *StorageReconcileWorkflow) Schedule(ctx goctx.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(func() {
		chainCtx := cor.NewBaseContext()
		chainCtx.SetContext(ctx)
		w.Execute(chainCtx)
		if err := cor.Err(chainCtx); err != nil {
			slog.ErrorContext(ctx, "scheduled reconcile failed", "error", err)
		}
	}))
	id, err := c.AddJob(spec, job)
	if err != nil {
		return 0, fmt.Errorf("failed to schedule reconcile %q: %w", spec, err)
	}
	return id, nil
}
