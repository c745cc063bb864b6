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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// ShapeKind identifies which of the provider's response layouts was received.
type ShapeKind int

const (
	UnknownShape ShapeKind = iota
	FeedShape
	TrendingShape
)

func (k ShapeKind) String() string {
	switch k {
	case FeedShape:
		return "feed"
	case TrendingShape:
		return "trending"
	default:
		return "unknown"
	}
}

// FeedVideo is one entry of the {code, data:{videos:[...]}} layout.
type FeedVideo struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Play         string `json:"play"`
	WmPlay       string `json:"wmplay"`
	Duration     int    `json:"duration"`
	DiggCount    int64  `json:"digg_count"`
	CommentCount int64  `json:"comment_count"`
	ShareCount   int64  `json:"share_count"`
	PlayCount    int64  `json:"play_count"`
	CreateTime   int64  `json:"create_time"`
	MusicInfo    struct {
		Title string `json:"title"`
	} `json:"music_info"`
	Author struct {
		UniqueID string `json:"unique_id"`
	} `json:"author"`
}

// TrendingVideo is one entry of the {data:{stats:[...]}} layout. This
// layout never exposes a binary stream.
type TrendingVideo struct {
	VideoID     string `json:"videoId"`
	AuthorName  string `json:"authorName"`
	Description string `json:"description"`
	VideoURL    string `json:"videoUrl"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
	Shares      int64  `json:"shares"`
	Views       int64  `json:"views"`
	Duration    int    `json:"duration"`
	MusicName   string `json:"musicName"`
	CreateTime  int64  `json:"createTime"`
}

// SearchResponse is decoded at the boundary into exactly one variant.
type SearchResponse struct {
	Kind     ShapeKind
	Code     int
	Message  string
	Feed     []FeedVideo
	Trending []TrendingVideo
}

// UnmarshalJSON picks the variant by which key path is populated:
// data.videos selects FeedShape and data.stats selects TrendingShape.
func (s *SearchResponse) UnmarshalJSON(b []byte) error {
	var probe struct {
		Code *int                       `json:"code"`
		Msg  string                     `json:"msg"`
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return fmt.Errorf("%w: search response: %v", model.ErrMalformedResponse, err)
	}
	*s = SearchResponse{Message: probe.Msg}
	if probe.Code != nil {
		s.Code = *probe.Code
	}
	if raw, ok := probe.Data["videos"]; ok {
		s.Kind = FeedShape
		if err := json.Unmarshal(raw, &s.Feed); err != nil {
			return fmt.Errorf("%w: feed videos: %v", model.ErrMalformedResponse, err)
		}
		return nil
	}
	if raw, ok := probe.Data["stats"]; ok {
		s.Kind = TrendingShape
		if err := json.Unmarshal(raw, &s.Trending); err != nil {
			return fmt.Errorf("%w: trending stats: %v", model.ErrMalformedResponse, err)
		}
		return nil
	}
	s.Kind = UnknownShape
	return nil
}

// PageURL is the public watch page of a video.
func PageURL(handle string, id string) string {
	if handle == "" || id == "" {
		return ""
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", handle, id)
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// Candidates normalizes whichever variant was received.
func (s *SearchResponse) Candidates(searchTerm string) []*model.CandidateVideo {
	out := make([]*model.CandidateVideo, 0, len(s.Feed)+len(s.Trending))
	switch s.Kind {
	case FeedShape:
		for _, v := range s.Feed {
			page := PageURL(v.Author.UniqueID, v.VideoID)
			media := v.Play
			if media == "" {
				media = v.WmPlay
			}
			if media == "" {
				media = page
			}
			out = append(out, &model.CandidateVideo{
				PlatformID:   v.VideoID,
				AuthorHandle: v.Author.UniqueID,
				Caption:      v.Title,
				Engagement: model.EngagementCounts{
					Likes:    v.DiggCount,
					Comments: v.CommentCount,
					Shares:   v.ShareCount,
					Views:    v.PlayCount,
				},
				OriginalURL:     page,
				MediaURL:        media,
				DurationSeconds: v.Duration,
				MusicTitle:      v.MusicInfo.Title,
				UploadedAt:      unixTime(v.CreateTime),
				SearchTerm:      searchTerm,
			})
		}
	case TrendingShape:
		for _, v := range s.Trending {
			out = append(out, &model.CandidateVideo{
				PlatformID:   v.VideoID,
				AuthorHandle: v.AuthorName,
				Caption:      v.Description,
				Engagement: model.EngagementCounts{
					Likes:    v.Likes,
					Comments: v.Comments,
					Shares:   v.Shares,
					Views:    v.Views,
				},
				OriginalURL:     v.VideoURL,
				MediaURL:        v.VideoURL,
				DurationSeconds: v.Duration,
				MusicTitle:      v.MusicName,
				UploadedAt:      unixTime(v.CreateTime),
				SearchTerm:      searchTerm,
			})
		}
	}
	return out
}

// SearchClient queries the short-form video search provider.
type SearchClient struct {
	cfg        SearchProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
}

func NewSearchClient(cfg SearchProvider) *SearchClient {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectFeed
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	return &SearchClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: seconds(cfg.TimeoutSeconds, 30*time.Second)},
		limiter:    newLimiter(cfg.RequestsPerSecond),
		retry:      RetryPolicy{MaxAttempts: 2, Backoff: time.Second},
	}
}

// params builds the dialect-specific query string.
func (c *SearchClient) params(query string, count int, filters *model.SearchFilters) url.Values {
	region := c.cfg.Region
	days := c.cfg.RecencyWindowDays
	sort := c.cfg.SortMode
	if filters != nil {
		if filters.RegionCode != "" {
			region = filters.RegionCode
		}
		if filters.RecencyWindowDays > 0 {
			days = filters.RecencyWindowDays
		}
		if filters.SortMode > 0 {
			sort = filters.SortMode
		}
	}
	v := url.Values{}
	switch c.cfg.Dialect {
	case DialectTrending:
		v.Set("search", query)
		v.Set("take", strconv.Itoa(count))
		if region != "" {
			v.Set("location", region)
		}
		if days > 0 {
			v.Set("days", strconv.Itoa(days))
		}
		v.Set("sort", strconv.Itoa(sort))
	default:
		v.Set("keywords", query)
		v.Set("count", strconv.Itoa(count))
		if region != "" {
			v.Set("region", region)
		}
		v.Set("publish_time", strconv.Itoa(days))
		v.Set("sort_type", strconv.Itoa(sort))
	}
	return v
}

// Search returns the decoded provider response for one query.
func (c *SearchClient) Search(ctx context.Context, query string, count int, filters *model.SearchFilters) (*SearchResponse, error) {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + c.cfg.Path + "?" + c.params(query, count, filters).Encode()
	resp, err := c.retry.Do(ctx, c.httpClient, c.limiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if c.cfg.APIKey != "" {
			req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
		}
		if c.cfg.HostHeader != "" && c.cfg.Host != "" {
			req.Header.Set(c.cfg.HostHeader, c.cfg.Host)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &SearchResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, err
	}
	if out.Kind == FeedShape && out.Code != 0 {
		return nil, fmt.Errorf("%w: search provider code %d: %s", model.ErrUpstreamUnavailable, out.Code, out.Message)
	}
	return out, nil
}
