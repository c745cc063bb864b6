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

package main

import (
	"context"
	"log"
	"os"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/api"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/repository"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/workflow"
)

type StateManager struct {
	config    *cloud.Config
	cloud     *cloud.ServiceClients
	repo      repository.Repository
	workflow  *workflow.ContentStrategyWorkflow
	reconcile *workflow.StorageReconcileWorkflow
	analytics *services.AnalyticsService
}

var state = &StateManager{}

// SetupOS defaults the configuration lookup to ./configs and the "local"
// runtime unless the environment already says otherwise.
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState creates the clients, applies the database migrations and builds
// the workflows.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	if cloudClients.Pool != nil {
		if err := repository.RunMigrations(ctx, cloudClients.Pool, repository.MigrationFiles(config.Database.MigrationsDir)); err != nil {
			panic(err)
		}
		state.repo = repository.NewPostgresRepository(cloudClients.Pool)
	}

	state.workflow, err = workflow.NewContentStrategyWorkflow(config, cloudClients, state.repo)
	if err != nil {
		panic(err)
	}

	if config.BigQueryDataSource.DatasetName != "" {
		state.analytics = &services.AnalyticsService{
			BigqueryClient: cloudClients.BigQueryClient,
			DatasetName:    config.BigQueryDataSource.DatasetName,
			AnalysesTable:  config.BigQueryDataSource.AnalysesTable,
		}
	}

	if state.repo != nil {
		state.reconcile = workflow.NewStorageReconcileWorkflow(config, cloudClients.ObjectStore, state.repo)
	}
}

// NewAPIServer exposes the state to the HTTP handlers.
func NewAPIServer() *api.Server {
	s := &api.Server{
		Workflows:  state.workflow,
		Analyzer:   state.workflow.Analyzer(),
		Subscriber: state.cloud.Subscriber,
		Identity:   api.NewOwnerIdentity(state.config.Auth.JWTSecret),
	}
	// Leave the interface nil rather than holding a nil pointer.
	if state.analytics != nil {
		s.Analytics = state.analytics
	}
	return s
}
