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
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/repository"
)

// ServiceClients holds every external connection of the process. It is
// built once at startup and shared by the API handlers, listeners and
// workflows.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BigQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient
	Pool            *pgxpool.Pool // nil when no database is configured
	Redis           *redis.Client // nil when no Redis is configured
	PubSubListeners map[string]*PubSubListener
	AgentModels     map[string]*QuotaAwareGenerativeAIModel

	ObjectStore ObjectStore
	Search      *SearchClient
	VideoModel  VideoModel
	TextModel   TextModel
	Progress    ProgressReporter
	Subscriber  ProgressSubscriber
}

func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if closer, ok := c.TextModel.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// NewAgentModels wraps each configured Vertex model in a quota aware handle.
func NewAgentModels(gc *genai.Client, config *Config) map[string]*QuotaAwareGenerativeAIModel {
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey, values := range config.AgentModels {
		generation := &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](values.Temperature),
			TopP:             genai.Ptr[float32](values.TopP),
			TopK:             genai.Ptr[float32](values.TopK),
			MaxOutputTokens:  values.MaxTokens,
			SafetySettings:   DefaultSafetySettings,
			ResponseMIMEType: values.OutputFormat,
		}
		if len(values.SystemInstructions) > 0 {
			generation.SystemInstruction = genai.NewContentFromText(values.SystemInstructions, genai.RoleUser)
		}
		agentModels[amKey] = NewQuotaAwareModel(generation, values.Model, gc.Models, values.RateLimit)
		slog.Debug("configured agent model", "agent", amKey, "model", values.Model)
	}
	return agentModels
}

// NewVideoModel selects the multimodal provider named in configuration.
func NewVideoModel(cfg MultimodalProvider, agents map[string]*QuotaAwareGenerativeAIModel) (VideoModel, error) {
	switch cfg.Provider {
	case ProviderHTTP:
		return NewHTTPVideoModel(cfg), nil
	case ProviderVertex, "":
		agent, ok := agents[cfg.Agent]
		if !ok {
			return nil, fmt.Errorf("multimodal agent model %q is not configured", cfg.Agent)
		}
		return NewVertexVideoModel(agent), nil
	default:
		return nil, fmt.Errorf("unknown multimodal provider %q", cfg.Provider)
	}
}

// NewTextModel selects the text provider named in configuration.
func NewTextModel(ctx context.Context, cfg TextProvider, agents map[string]*QuotaAwareGenerativeAIModel) (TextModel, error) {
	switch cfg.Provider {
	case ProviderChat:
		return NewChatCompletionsModel(cfg), nil
	case ProviderStudio:
		return NewStudioTextModel(ctx, cfg)
	case ProviderVertex, "":
		agent, ok := agents[cfg.Agent]
		if !ok {
			return nil, fmt.Errorf("text agent model %q is not configured", cfg.Agent)
		}
		return NewVertexTextModel(agent), nil
	default:
		return nil, fmt.Errorf("unknown text provider %q", cfg.Provider)
	}
}

// NewCloudServiceClients creates every client named by config. Postgres and
// Redis are optional; without them persistence is skipped and progress is
// fanned out in process.
func NewCloudServiceClients(ctx context.Context, config *Config) (*ServiceClients, error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	pc, err := pubsub.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	slog.InfoContext(ctx, "creating genai client", "project", config.Application.GoogleProjectId, "location", config.Application.GoogleLocation)
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	bc, err := bigquery.NewClient(ctx, config.Application.GoogleProjectId)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	ic, err := credentials.NewIamCredentialsClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create iam credentials client: %w", err)
	}

	subscriptions := make(map[string]*PubSubListener)
	for subKey, values := range config.TopicSubscriptions {
		listener, err := NewPubSubListener(pc, values.Name, nil)
		if err != nil {
			return nil, err
		}
		subscriptions[subKey] = listener
	}

	agentModels := NewAgentModels(gc, config)
	videoModel, err := NewVideoModel(config.Multimodal, agentModels)
	if err != nil {
		return nil, err
	}
	textModel, err := NewTextModel(ctx, config.Text, agentModels)
	if err != nil {
		return nil, err
	}

	clients := &ServiceClients{
		StorageClient:   sc,
		PubsubClient:    pc,
		GenAIClient:     gc,
		BigQueryClient:  bc,
		IAMClient:       ic,
		PubSubListeners: subscriptions,
		AgentModels:     agentModels,
		ObjectStore:     NewGCSObjectStore(sc, ic, config.Storage, config.Application.SignerServiceAccountEmail),
		Search:          NewSearchClient(config.Search),
		VideoModel:      videoModel,
		TextModel:       textModel,
	}

	if len(config.Database.URL) > 0 {
		pool, err := repository.NewPostgresPool(ctx, config.Database.URL, config.Database.MaxConns, config.Database.MinConns)
		if err != nil {
			return nil, err
		}
		clients.Pool = pool
	}

	if len(config.Redis.URL) > 0 {
		rc, err := NewRedisClient(ctx, config.Redis.URL)
		if err != nil {
			return nil, err
		}
		progress := NewRedisProgress(rc, config.Redis.ChannelPrefix)
		clients.Redis = rc
		clients.Progress = progress
		clients.Subscriber = progress
	} else {
		progress := NewChannelProgress()
		clients.Progress = progress
		clients.Subscriber = progress
	}
	return clients, nil
}
