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

// Package workflow assembles commands into the pipelines the server runs:
// the four-stage content strategy run and the scheduled storage
// reconciliation.
package workflow

import (
	goctx "context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/cloud"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/commands"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/cor"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/repository"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/services"
)

// Context keys owned by the workflow itself.
const (
	paramStage  = "__STAGE__"  // model.Stage reached so far
	paramCounts = "__COUNTS__" // map[model.Stage]int
)

// Command names. The four stage commands double as progress checkpoints.
const (
	CmdParseRequest       = "parse-request"
	CmdResolveOwner       = "resolve-owner"
	CmdGenerateQueries    = "generate-queries"
	CmdPersistQueries     = "persist-queries"
	CmdScrapeVideos       = "scrape-videos"
	CmdPersistVideos      = "persist-videos"
	CmdAnalyzeVideos      = "analyze-videos"
	CmdPersistAnalyses    = "persist-analyses"
	CmdAnalysesToBigQuery = "analyses-to-bigquery"
	CmdSynthesizeStrategy = "synthesize-strategy"
)

var stageCommands = map[string]model.Stage{
	CmdGenerateQueries:    model.StageQueriesGenerated,
	CmdScrapeVideos:       model.StageVideosScraped,
	CmdAnalyzeVideos:      model.StageVideosAnalyzed,
	CmdSynthesizeStrategy: model.StageStrategyBuilt,
}

// ContentStrategyWorkflow runs one business description through query
// generation, scraping, analysis and synthesis. One instance serves any
// number of concurrent runs; all per-run state lives in the cor.Context.
//
// The chain accepts either a JSON request (Pub/Sub) or a
// *model.WorkflowRequest in cor.CtxIn.
type ContentStrategyWorkflow struct {
	cor.BaseCommand
	config      *cloud.Config
	repo        repository.Repository
	progress    cloud.ProgressReporter
	queries     *services.QueryGenerator
	resolver    *services.Resolver
	analyzer    *services.Analyzer
	synthesizer *services.Synthesizer
	inserter    commands.RowInserter
	chain       cor.Chain
}

// Execute runs the chain and reports the terminal state.
func (w *ContentStrategyWorkflow) Execute(context cor.Context) {
	context.Add(paramStage, model.StagePending)
	context.Add(paramCounts, make(map[model.Stage]int))
	w.chain.Execute(context)

	req := commands.GetRequest(context)
	if req == nil {
		return
	}
	if err := cor.Err(context); err != nil {
		context.Add(paramStage, model.StageFailed)
		w.report(context.GetContext(), req.RunID, model.StageFailed, 0, err.Error())
		slog.ErrorContext(context.GetContext(), "workflow failed", "run_id", req.RunID, "error", err)
		return
	}
	slog.InfoContext(context.GetContext(), "workflow completed", "run_id", req.RunID)
}

// Run executes one request synchronously. The result is returned even when
// the run fails, so callers can see how far it got.
func (w *ContentStrategyWorkflow) Run(ctx goctx.Context, req *model.WorkflowRequest) (*model.WorkflowResult, error) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, req)
	w.Execute(chainCtx)
	return Result(chainCtx), cor.Err(chainCtx)
}

// Result collects the outcome of a run from its context.
func Result(context cor.Context) *model.WorkflowResult {
	out := &model.WorkflowResult{
		Stage:   model.StagePending,
		Counts:  make(map[model.Stage]int),
		Queries: []*model.SearchQuery{},
		Skipped: commands.GetSkipped(context),
	}
	if req := commands.GetRequest(context); req != nil {
		out.RunID = req.RunID
		out.Request = req
	}
	if stage, ok := context.Get(paramStage).(model.Stage); ok {
		out.Stage = stage
	}
	if counts, ok := context.Get(paramCounts).(map[model.Stage]int); ok {
		for k, v := range counts {
			out.Counts[k] = v
		}
	}
	if queries, ok := context.Get(commands.ParamQueries).([]*model.SearchQuery); ok {
		out.Queries = queries
	}
	if strategy, ok := context.Get(commands.ParamStrategy).(*model.Strategy); ok {
		out.Strategy = strategy
	}
	if context.HasErrors() {
		out.Stage = model.StageFailed
	}
	return out
}

func (w *ContentStrategyWorkflow) report(ctx goctx.Context, runID string, stage model.Stage, count int, message string) {
	if w.progress == nil {
		return
	}
	w.progress.Report(ctx, &model.ProgressEvent{RunID: runID, Stage: stage, Count: count, Message: message, At: time.Now()})
}

// observeStage advances the run's stage after each stage command and emits
// a progress event carrying the size of what the stage produced.
func (w *ContentStrategyWorkflow) observeStage(context cor.Context, command cor.Command, output interface{}) {
	next, ok := stageCommands[command.GetName()]
	if !ok {
		return
	}
	current, _ := context.Get(paramStage).(model.Stage)
	if !current.CanAdvanceTo(next) {
		slog.WarnContext(context.GetContext(), "unexpected stage transition", "from", current, "to", next)
	}
	count := model.CollectionSize(output)
	context.Add(paramStage, next)
	if counts, ok := context.Get(paramCounts).(map[model.Stage]int); ok {
		counts[next] = count
	}
	runID := ""
	if req := commands.GetRequest(context); req != nil {
		runID = req.RunID
	}
	slog.InfoContext(context.GetContext(), "stage completed", "run_id", runID, "stage", next, "count", count)
	w.report(context.GetContext(), runID, next, count, "")
}

func (w *ContentStrategyWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewParseRequest(CmdParseRequest, w.config.Workflow))
	out.AddCommand(commands.NewResolveOwner(CmdResolveOwner, w.repo))
	out.AddCommand(commands.NewGenerateQueries(CmdGenerateQueries, w.queries, w.config.Workflow.QueriesPerRun))
	out.AddCommand(commands.NewPersistQueries(CmdPersistQueries, w.repo))
	out.AddCommand(commands.NewScrapeVideos(CmdScrapeVideos, w.resolver))
	out.AddCommand(commands.NewPersistVideos(CmdPersistVideos, w.repo))
	out.AddCommand(commands.NewAnalyzeVideos(CmdAnalyzeVideos, w.analyzer, w.config.Workflow.AnalysisWorkers))
	out.AddCommand(commands.NewPersistAnalyses(CmdPersistAnalyses, w.repo))
	out.AddCommand(commands.NewAnalysesToBigQuery(CmdAnalysesToBigQuery, w.inserter))
	out.AddCommand(commands.NewSynthesizeStrategy(CmdSynthesizeStrategy, w.synthesizer))
	out.Observe(w.observeStage)
	w.chain = out
}

// Analyzer exposes the video analyzer for the single-video streaming endpoint.
func (w *ContentStrategyWorkflow) Analyzer() *services.Analyzer {
	return w.analyzer
}

// ParseTemplates compiles the prompt templates named in config.
func ParseTemplates(prompts cloud.PromptTemplates) (queries *template.Template, analysis *template.Template, strategy *template.Template, err error) {
	if queries, err = template.New("queries").Parse(prompts.Queries); err != nil {
		return nil, nil, nil, fmt.Errorf("queries template: %w", err)
	}
	if analysis, err = template.New("analysis").Parse(prompts.Analysis); err != nil {
		return nil, nil, nil, fmt.Errorf("analysis template: %w", err)
	}
	if strategy, err = template.New("strategy").Parse(prompts.Strategy); err != nil {
		return nil, nil, nil, fmt.Errorf("strategy template: %w", err)
	}
	return queries, analysis, strategy, nil
}

// NewContentStrategyWorkflow wires the services over the given clients. repo
// may be nil, in which case nothing is persisted; a nil BigQuery client
// disables the analytics export.
func NewContentStrategyWorkflow(config *cloud.Config, clients *cloud.ServiceClients, repo repository.Repository) (*ContentStrategyWorkflow, error) {
	queriesTmpl, analysisTmpl, strategyTmpl, err := ParseTemplates(config.PromptTemplates)
	if err != nil {
		return nil, err
	}
	var strategyStore services.StrategyStore
	if repo != nil {
		strategyStore = repo
	}
	var inserter commands.RowInserter
	if clients.BigQueryClient != nil && config.BigQueryDataSource.DatasetName != "" {
		inserter = clients.BigQueryClient.
			Dataset(config.BigQueryDataSource.DatasetName).
			Table(config.BigQueryDataSource.AnalysesTable).
			Inserter()
	}
	progress := clients.Progress
	if progress == nil {
		progress = cloud.NoopProgress{}
	}

	downloader := services.NewDownloader(clients.ObjectStore, config.Download, config.Storage.Prefix)
	filters := model.SearchFilters{
		SortMode:          config.Search.SortMode,
		RecencyWindowDays: config.Search.RecencyWindowDays,
		RegionCode:        config.Search.Region,
	}
	window := services.VideoWindow{
		FPS:   config.Multimodal.FPS,
		Start: time.Duration(config.Multimodal.StartSeconds) * time.Second,
		End:   time.Duration(config.Multimodal.EndSeconds) * time.Second,
	}

	w := &ContentStrategyWorkflow{
		BaseCommand: *cor.NewBaseCommand("content-strategy-workflow"),
		config:      config,
		repo:        repo,
		progress:    progress,
		queries:     services.NewQueryGenerator(clients.TextModel, queriesTmpl, "", config.Workflow.DefaultQuery),
		resolver:    services.NewResolver(clients.Search, downloader, filters),
		analyzer:    services.NewAnalyzer(clients.VideoModel, analysisTmpl, config.PromptTemplates.AnalysisSystem, window, config.AnalysisTimeout()),
		synthesizer: services.NewSynthesizer(clients.TextModel, strategyTmpl, config.PromptTemplates.StrategySystem, strategyStore),
		inserter:    inserter,
	}
	w.initializeChain()
	return w, nil
}
