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

// Package cloud defines the application configuration and the clients for
// every external collaborator of a trend strategy run: object storage, the
// search provider, multimodal and text models, Pub/Sub, Redis and BigQuery.
//
// This file holds the TOML-mapped configuration structs. Values are loaded by
// LoadConfig from a base file and a runtime-specific override file; secrets
// may be written as ${ENV_VAR} references and are expanded after decoding.
package cloud

import (
	"os"
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings leave every harm category unblocked. Short-form
// marketing videos regularly trip the default thresholds on harmless content.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Provider names accepted in configuration.
const (
	ProviderVertex = "vertex" // Vertex AI through google.golang.org/genai
	ProviderHTTP   = "http"   // multimodal HTTP endpoint with input.messages payloads
	ProviderChat   = "chat"   // OpenAI-compatible chat completions
	ProviderStudio = "studio" // Gemini API with an API key
)

// Search dialects.
const (
	DialectFeed     = "feed"
	DialectTrending = "trending"
)

// BigQueryDataSource locates the analytics tables.
type BigQueryDataSource struct {
	DatasetName   string `toml:"dataset"`
	AnalysesTable string `toml:"analyses_table"`
}

// PromptTemplates are Go text/template sources.
type PromptTemplates struct {
	Queries        string `toml:"queries"`         // {{.BusinessDescription}}, {{.Count}}
	AnalysisSystem string `toml:"analysis_system"` // persona for the multimodal model
	Analysis       string `toml:"analysis"`        // {{.Caption}}, {{.Likes}} ... {{.ExampleJSON}}
	StrategySystem string `toml:"strategy_system"`
	Strategy       string `toml:"strategy"` // {{.BusinessDescription}}, {{.VideosJSON}}, {{.Headings}}
}

// VertexAiLLMModel configures one Vertex AI generative model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // burst size, refilled at one request per second
}

// TopicSubscription configures one Pub/Sub subscription.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Storage configures the bucket that holds staged videos.
type Storage struct {
	Bucket              string `toml:"bucket"`
	Prefix              string `toml:"prefix"`
	PublicBaseURL       string `toml:"public_base_url"`
	SignedURLs          bool   `toml:"signed_urls"`
	SignedURLTTLMinutes int    `toml:"signed_url_ttl_minutes"`
}

// SearchProvider configures the short-form video search API.
type SearchProvider struct {
	BaseURL           string  `toml:"base_url"`
	Path              string  `toml:"path"`
	Dialect           string  `toml:"dialect"`
	APIKey            string  `toml:"api_key"`
	APIKeyHeader      string  `toml:"api_key_header"`
	Host              string  `toml:"host"`
	HostHeader        string  `toml:"host_header"`
	Region            string  `toml:"region"`
	RecencyWindowDays int     `toml:"recency_window_days"`
	SortMode          int     `toml:"sort_mode"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Download configures fetching of media binaries.
type Download struct {
	MaxAttempts    int   `toml:"max_attempts"`
	BackoffMillis  int   `toml:"backoff_millis"`
	TimeoutSeconds int   `toml:"timeout_seconds"`
	MaxBytes       int64 `toml:"max_bytes"`
}

// MultimodalProvider configures the video analysis model.
type MultimodalProvider struct {
	Provider          string  `toml:"provider"`
	Agent             string  `toml:"agent"` // key into AgentModels when Provider is vertex
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	FPS               float64 `toml:"fps"`
	StartSeconds      int     `toml:"start_seconds"`
	EndSeconds        int     `toml:"end_seconds"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// TextProvider configures the text model used for queries and synthesis.
type TextProvider struct {
	Provider          string  `toml:"provider"`
	Agent             string  `toml:"agent"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Temperature       float32 `toml:"temperature"`
	MaxTokens         int32   `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// WorkflowDefaults are per-run knobs.
type WorkflowDefaults struct {
	QueriesPerRun          int    `toml:"queries_per_run"`
	VideosPerQuery         int    `toml:"videos_per_query"`
	MaxVideosPerQuery      int    `toml:"max_videos_per_query"`
	AnalysisWorkers        int    `toml:"analysis_workers"`
	AnalysisTimeoutSeconds int    `toml:"analysis_timeout_seconds"`
	DefaultQuery           string `toml:"default_query"`
}

// Database configures the Postgres pool.
type Database struct {
	URL           string `toml:"url"`
	MaxConns      int32  `toml:"max_conns"`
	MinConns      int32  `toml:"min_conns"`
	MigrationsDir string `toml:"migrations_dir"`
}

// Redis configures the progress side channel.
type Redis struct {
	URL           string `toml:"url"`
	ChannelPrefix string `toml:"channel_prefix"`
}

// Reconcile configures the scheduled storage reconciliation job.
type Reconcile struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule"`
	OrphanAgeHours int    `toml:"orphan_age_hours"`
	ScanLimit      int    `toml:"scan_limit"`
}

// Auth configures bearer token verification.
type Auth struct {
	JWTSecret string `toml:"jwt_secret"`
}

// Config is the root configuration object.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		ThreadPoolSize            int    `toml:"thread_pool_size"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		Port                      int    `toml:"port"`
	} `toml:"application"`
	Telemetry struct {
		Exporter string `toml:"exporter"` // "gcp" or "none"
		LogFile  string `toml:"log_file"`
	} `toml:"telemetry"`
	Storage            Storage                      `toml:"storage"`
	Search             SearchProvider               `toml:"search"`
	Download           Download                     `toml:"download"`
	Multimodal         MultimodalProvider           `toml:"multimodal"`
	Text               TextProvider                 `toml:"text"`
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	Workflow           WorkflowDefaults             `toml:"workflow"`
	Database           Database                     `toml:"database"`
	Redis              Redis                        `toml:"redis"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	Reconcile          Reconcile                    `toml:"reconcile"`
	Auth               Auth                         `toml:"auth"`
}

// NewConfig returns a Config with its maps allocated and the defaults that
// hold when a setting is absent from every file.
func NewConfig() *Config {
	c := &Config{
		AgentModels:        make(map[string]VertexAiLLMModel),
		TopicSubscriptions: make(map[string]TopicSubscription),
	}
	c.Application.Name = "trend-strategist"
	c.Application.Port = 8080
	c.Application.ThreadPoolSize = 1
	c.Telemetry.Exporter = "gcp"
	c.Telemetry.LogFile = "app.log"
	c.Storage.Prefix = "staged"
	c.Storage.PublicBaseURL = "https://storage.googleapis.com"
	c.Storage.SignedURLTTLMinutes = 60
	c.Search.Dialect = DialectFeed
	c.Search.APIKeyHeader = "X-API-Key"
	c.Search.RequestsPerSecond = 1
	c.Search.TimeoutSeconds = 30
	c.Download.MaxAttempts = 3
	c.Download.BackoffMillis = 500
	c.Download.TimeoutSeconds = 120
	c.Download.MaxBytes = 200 << 20
	c.Multimodal.Provider = ProviderVertex
	c.Multimodal.FPS = 2
	c.Multimodal.EndSeconds = 30
	c.Multimodal.TimeoutSeconds = 300
	c.Multimodal.RequestsPerSecond = 1
	c.Text.Provider = ProviderVertex
	c.Text.Temperature = 0.7
	c.Text.MaxTokens = 4096
	c.Text.TimeoutSeconds = 120
	c.Text.RequestsPerSecond = 1
	c.Workflow.QueriesPerRun = 5
	c.Workflow.VideosPerQuery = 2
	c.Workflow.MaxVideosPerQuery = 10
	c.Workflow.AnalysisWorkers = 1
	c.Workflow.AnalysisTimeoutSeconds = 300
	c.Workflow.DefaultQuery = "trending small business ideas"
	c.Database.MaxConns = 25
	c.Database.MinConns = 5
	c.Database.MigrationsDir = "migrations"
	c.Redis.ChannelPrefix = "workflow_progress:"
	c.Reconcile.Schedule = "@every 1h"
	c.Reconcile.OrphanAgeHours = 72
	c.Reconcile.ScanLimit = 1000
	return c
}

// expandSecrets replaces ${VAR} references in the settings that usually carry
// credentials.
func (c *Config) expandSecrets() {
	for _, field := range []*string{
		&c.Search.APIKey,
		&c.Search.Host,
		&c.Multimodal.APIKey,
		&c.Text.APIKey,
		&c.Database.URL,
		&c.Redis.URL,
		&c.Auth.JWTSecret,
		&c.Application.GoogleProjectId,
		&c.Application.SignerServiceAccountEmail,
	} {
		*field = os.ExpandEnv(*field)
	}
}

// AnalysisTimeout is the per-video bound on the multimodal call.
func (c *Config) AnalysisTimeout() time.Duration {
	return seconds(c.Workflow.AnalysisTimeoutSeconds, 5*time.Minute)
}

func seconds(in int, fallback time.Duration) time.Duration {
	if in <= 0 {
		return fallback
	}
	return time.Duration(in) * time.Second
}
