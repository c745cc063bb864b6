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

package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// StoredObject describes one object under the staging prefix.
type StoredObject struct {
	Path        string
	ContentType string
	Size        int64
	Created     time.Time
	Metadata    map[string]string
}

// ObjectStore is the durable storage used to stage downloaded videos.
type ObjectStore interface {
	// Put writes the object and returns a URL the analysis provider can read.
	Put(ctx context.Context, path string, contentType string, metadata map[string]string, body io.Reader) (string, error)
	List(ctx context.Context, prefix string) ([]StoredObject, error)
	Delete(ctx context.Context, paths []string) error
	// ReadURL returns the read URL of an existing object.
	ReadURL(ctx context.Context, path string) (string, error)
	// URI is the gs:// form of path.
	URI(path string) string
}

// GCSObjectStore stages objects in a single Cloud Storage bucket.
type GCSObjectStore struct {
	client        *storage.Client
	iam           *credentials.IamCredentialsClient
	bucket        string
	publicBaseURL string
	signerEmail   string
	signedURLs    bool
	signedURLTTL  time.Duration
}

func NewGCSObjectStore(client *storage.Client, iam *credentials.IamCredentialsClient, cfg Storage, signerEmail string) *GCSObjectStore {
	return &GCSObjectStore{
		client:        client,
		iam:           iam,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		signerEmail:   signerEmail,
		signedURLs:    cfg.SignedURLs,
		signedURLTTL:  time.Duration(cfg.SignedURLTTLMinutes) * time.Minute,
	}
}

// Put streams body into path. A failed read cancels the upload, so no
// partial object is committed.
func (g *GCSObjectStore) Put(ctx context.Context, path string, contentType string, metadata map[string]string, body io.Reader) (string, error) {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writer := g.client.Bucket(g.bucket).Object(path).NewWriter(writeCtx)
	writer.ContentType = contentType
	writer.Metadata = metadata
	if _, err := io.Copy(writer, body); err != nil {
		cancel()
		_ = writer.Close()
		return "", fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, path, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gs://%s/%s: %w", g.bucket, path, err)
	}
	return g.ReadURL(ctx, path)
}

// ReadURL is the URL model providers fetch the object from: a V4 signed URL
// when signing is configured, otherwise the public URL.
func (g *GCSObjectStore) ReadURL(ctx context.Context, path string) (string, error) {
	if g.signedURLs {
		return g.SignedURL(ctx, path)
	}
	return g.PublicURL(path), nil
}

func (g *GCSObjectStore) List(ctx context.Context, prefix string) ([]StoredObject, error) {
	out := make([]StoredObject, 0)
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", g.bucket, prefix, err)
		}
		out = append(out, StoredObject{
			Path:        attrs.Name,
			ContentType: attrs.ContentType,
			Size:        attrs.Size,
			Created:     attrs.Created,
			Metadata:    attrs.Metadata,
		})
	}
	return out, nil
}

// Delete removes every path, continuing past failures. Missing objects are
// not an error.
func (g *GCSObjectStore) Delete(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		err := g.client.Bucket(g.bucket).Object(p).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
			continue
		}
		slog.DebugContext(ctx, "deleted staged object", "path", p)
	}
	return errors.Join(errs...)
}

func (g *GCSObjectStore) URI(path string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, path)
}

// PublicURL is the unauthenticated HTTPS form of path.
func (g *GCSObjectStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", g.publicBaseURL, g.bucket, escapePath(path))
}

// SignedURL returns a V4 GET URL signed through the IAM Credentials API, so
// no private key needs to be present on the host.
func (g *GCSObjectStore) SignedURL(ctx context.Context, path string) (string, error) {
	ttl := g.signedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if g.iam != nil && g.signerEmail != "" {
		opts.GoogleAccessID = g.signerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := g.iam.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", g.signerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := g.client.Bucket(g.bucket).SignedURL(path, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).SignedURL(%q): %w", g.bucket, path, err)
	}
	return u, nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
