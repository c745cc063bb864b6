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

package services_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "healthy-meal-prep", services.Slug("  Healthy Meal-Prep!! "))
	assert.Equal(t, "video", services.Slug("???"))
	assert.True(t, len(services.Slug(strings.Repeat("long query ", 10))) <= 40)
}

func TestObjectPath(t *testing.T) {
	path := services.ObjectPath("/staged/", "batch-1", "Meal Prep Austin", "7301", "mp4")
	assert.True(t, strings.HasPrefix(path, "staged/batch-1/meal-prep-austin-7301-"), path)
	assert.True(t, strings.HasSuffix(path, ".mp4"), path)

	other := services.ObjectPath("/staged/", "batch-1", "Meal Prep Austin", "7301", "mp4")
	assert.NotEqual(t, path, other)

	bare := services.ObjectPath("", "", "q", "1", "webm")
	assert.False(t, strings.Contains(bare, "/"))
}

func newMediaServer(failing ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, f := range failing {
			if r.URL.Path == f {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		if strings.HasSuffix(r.URL.Path, ".html") {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(test.HTMLPage())
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(test.MP4Header())
	}))
}

func TestDownloaderStagesVideo(t *testing.T) {
	media := newMediaServer()
	defer media.Close()
	store := test.NewFakeObjectStore()
	d := services.NewDownloader(store, cloud.Download{MaxAttempts: 1, TimeoutSeconds: 5}, "staged")

	staged, err := d.Stage(context.Background(), "batch-1", &model.CandidateVideo{
		PlatformID: "7301",
		SearchTerm: "Healthy Meal Prep",
		MediaURL:   media.URL + "/media/v1.mp4",
	})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "video/mp4", staged.ContentType)
	assert.Equal(t, "batch-1", staged.BatchID)
	assert.True(t, strings.HasPrefix(staged.StoragePath, "staged/batch-1/healthy-meal-prep-7301-"))
	assert.Equal(t, "https://storage.test/bucket/"+staged.StoragePath, staged.StorageURL)
	assert.Equal(t, "gs://bucket/"+staged.StoragePath, staged.StorageURI)

	obj := store.Objects[staged.StoragePath]
	assert.Equal(t, "Healthy Meal Prep", obj.Metadata["search_term"])
	assert.Equal(t, "7301", obj.Metadata["platform_id"])
	assert.Equal(t, "batch-1", obj.Metadata["batch_id"])
	assert.Equal(t, test.MP4Header(), store.Bodies[staged.StoragePath])
}

func TestDownloaderRejectsNonVideo(t *testing.T) {
	media := newMediaServer()
	defer media.Close()
	store := test.NewFakeObjectStore()
	d := services.NewDownloader(store, cloud.Download{MaxAttempts: 1, TimeoutSeconds: 5}, "staged")

	_, err := d.Stage(context.Background(), "b", &model.CandidateVideo{PlatformID: "1", MediaURL: media.URL + "/watch.html"})
	assert.ErrorIs(t, err, model.ErrMalformedResponse)
	assert.Empty(t, store.Paths())
}

func TestDownloaderUpstreamFailure(t *testing.T) {
	media := newMediaServer("/media/v1.mp4")
	defer media.Close()
	d := services.NewDownloader(test.NewFakeObjectStore(), cloud.Download{MaxAttempts: 2, BackoffMillis: 1, TimeoutSeconds: 5}, "staged")

	_, err := d.Stage(context.Background(), "b", &model.CandidateVideo{PlatformID: "1", MediaURL: media.URL + "/media/v1.mp4"})
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

func TestDownloaderRequiresMediaURL(t *testing.T) {
	d := services.NewDownloader(test.NewFakeObjectStore(), cloud.Download{}, "staged")
	_, err := d.Stage(context.Background(), "b", &model.CandidateVideo{PlatformID: "1"})
	assert.ErrorIs(t, err, model.ErrMalformedResponse)
}

func largeVideo() []byte {
	return append(test.MP4Header(), bytes.Repeat([]byte{0}, 4096)...)
}

func TestDownloaderRejectsOversizedPayload(t *testing.T) {
	payload := largeVideo()
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		if r.URL.Path == "/declared.mp4" {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		}
		_, _ = w.Write(payload)
	}))
	defer media.Close()
	store := test.NewFakeObjectStore()
	d := services.NewDownloader(store, cloud.Download{MaxAttempts: 1, TimeoutSeconds: 5, MaxBytes: 1024}, "staged")

	for _, path := range []string{"/declared.mp4", "/streamed.mp4"} {
		_, err := d.Stage(context.Background(), "b", &model.CandidateVideo{PlatformID: "1", MediaURL: media.URL + path})
		assert.ErrorIs(t, err, model.ErrMalformedResponse, path)
	}
	assert.Empty(t, store.Paths())

	d.MaxBytes = int64(len(payload))
	staged, err := d.Stage(context.Background(), "b", &model.CandidateVideo{PlatformID: "1", MediaURL: media.URL + "/streamed.mp4"})
	if assert.NoError(t, err) {
		assert.Equal(t, payload, store.Bodies[staged.StoragePath])
	}
}
