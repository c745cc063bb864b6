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

package telemetry_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/telemetry"
)

func TestSetupLoggingWritesCloudLoggingKeys(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	telemetry.SetupLogging(logFile)

	slog.Warn("staging skipped", "platform_id", "7301")

	b, err := os.ReadFile(logFile)
	assert.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"severity":"WARNING"`)
	assert.Contains(t, out, `"message":"staging skipped"`)
	assert.Contains(t, out, `"timestamp":`)
	assert.Contains(t, out, `"platform_id":"7301"`)
}

func TestSetupOpenTelemetryWithoutExporter(t *testing.T) {
	config := cloud.NewConfig()
	config.Telemetry.Exporter = telemetry.ExporterNone

	shutdown, err := telemetry.SetupOpenTelemetry(context.Background(), config)
	assert.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
