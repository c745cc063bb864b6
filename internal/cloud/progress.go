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
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// ProgressReporter receives one event per completed stage. Reporting is
// best-effort: implementations log failures instead of returning them.
type ProgressReporter interface {
	Report(ctx context.Context, event *model.ProgressEvent)
}

// ProgressSubscriber delivers the events of one run until ctx ends.
type ProgressSubscriber interface {
	Subscribe(ctx context.Context, runID string) (<-chan *model.ProgressEvent, error)
}

// NoopProgress discards every event.
type NoopProgress struct{}

func (NoopProgress) Report(context.Context, *model.ProgressEvent) {}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// RedisProgress publishes events on "{prefix}{runId}" and lets websocket
// relays subscribe to the same channel.
type RedisProgress struct {
	client *redis.Client
	prefix string
}

func NewRedisProgress(client *redis.Client, prefix string) *RedisProgress {
	return &RedisProgress{client: client, prefix: prefix}
}

func (r *RedisProgress) channel(runID string) string {
	return r.prefix + runID
}

func (r *RedisProgress) Report(ctx context.Context, event *model.ProgressEvent) {
	if err := r.client.Publish(ctx, r.channel(event.RunID), event.Marshal()).Err(); err != nil {
		slog.WarnContext(ctx, "failed to publish progress", "run_id", event.RunID, "stage", event.Stage, "error", err)
	}
}

func (r *RedisProgress) Subscribe(ctx context.Context, runID string) (<-chan *model.ProgressEvent, error) {
	sub := r.client.Subscribe(ctx, r.channel(runID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel(runID), err)
	}
	out := make(chan *model.ProgressEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event := &model.ProgressEvent{}
				if err := json.Unmarshal([]byte(msg.Payload), event); err != nil {
					slog.WarnContext(ctx, "dropping malformed progress message", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ChannelProgress fans events out to in-process subscribers. It backs the
// websocket relay when Redis is not configured.
type ChannelProgress struct {
	mu   sync.Mutex
	subs map[string][]chan *model.ProgressEvent
}

func NewChannelProgress() *ChannelProgress {
	return &ChannelProgress{subs: make(map[string][]chan *model.ProgressEvent)}
}

// Report never blocks; a subscriber whose buffer is full misses the event.
func (c *ChannelProgress) Report(ctx context.Context, event *model.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs[event.RunID] {
		select {
		case ch <- event:
		default:
			slog.WarnContext(ctx, "progress subscriber is slow, dropping event", "run_id", event.RunID, "stage", event.Stage)
		}
	}
}

func (c *ChannelProgress) Subscribe(ctx context.Context, runID string) (<-chan *model.ProgressEvent, error) {
	ch := make(chan *model.ProgressEvent, 16)
	c.mu.Lock()
	c.subs[runID] = append(c.subs[runID], ch)
	c.mu.Unlock()
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.subs[runID]
		for i, s := range subs {
			if s == ch {
				c.subs[runID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(c.subs[runID]) == 0 {
			delete(c.subs, runID)
		}
		close(ch)
	}()
	return ch, nil
}
