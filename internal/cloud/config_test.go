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

package cloud_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	test "github.com/jaycherian/gcp-go-trend-strategist/internal/testutil"
)

func TestLoadTestConfig(t *testing.T) {
	config := test.GetConfig()

	assert.Equal(t, "trend-strategist", config.Application.Name)
	assert.Equal(t, "test-project", config.Application.GoogleProjectId)
	assert.Equal(t, "none", config.Telemetry.Exporter)
	assert.Equal(t, "staged", config.Storage.Prefix)
	assert.False(t, config.Storage.SignedURLs)
	assert.Equal(t, 5, config.Workflow.QueriesPerRun)
	assert.Equal(t, 10, config.Workflow.MaxVideosPerQuery)
	assert.Equal(t, 30*time.Second, config.AnalysisTimeout())
	assert.Empty(t, config.Database.URL)
	assert.Contains(t, config.AgentModels, "video-analyst")
	assert.Contains(t, config.TopicSubscriptions, "WorkflowRequests")
	assert.Contains(t, config.PromptTemplates.Analysis, "{{.Caption}}")
	assert.Contains(t, config.PromptTemplates.Strategy, "{{.Headings}}")
}

func TestLoadConfigExpandsSecrets(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(`
[search]
api_key = "${TREND_SEARCH_KEY}"

[workflow]
videos_per_query = 4
`), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.ci.toml"), []byte(`
[workflow]
videos_per_query = 6
`), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.env"), []byte("TREND_SEARCH_KEY=from-dotenv\n"), 0o644))

	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "ci")
	t.Setenv(cloud.EnvDotEnvFile, filepath.Join(dir, "secrets.env"))
	t.Setenv("TREND_SEARCH_KEY", "")
	os.Unsetenv("TREND_SEARCH_KEY")

	config := cloud.NewConfig()
	assert.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, "from-dotenv", config.Search.APIKey)
	assert.Equal(t, 6, config.Workflow.VideosPerQuery)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, config.Download.MaxAttempts)
}

func TestLoadConfigRejectsBadToml(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[workflow\n"), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "none")
	t.Setenv(cloud.EnvDotEnvFile, filepath.Join(dir, "missing.env"))

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}
