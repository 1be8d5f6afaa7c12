// Package engine coordinates full margin runs: CRIF load, parameter
// load, calculation, persistence and report output.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/internal/report"
	"github.com/wonny/atlas/internal/simm"
	"github.com/wonny/atlas/internal/simmparams"
	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/metrics"
	"github.com/wonny/atlas/pkg/redis"
)

// Report file names written under RunConfig.OutputDir.
const (
	FinalReportFile = "simm.csv"
	FullReportFile  = "simm_full.csv"
	DataReportFile  = "simm_data.csv"
)

// Orchestrator coordinates the 5-stage margin pipeline
// ⭐ SSOT: 마진 런 조율은 여기서만
type Orchestrator struct {
	writer *report.Writer
	fx     contracts.FxProvider

	// Repositories, nil when persistence is disabled
	runRepo  *report.Repository
	crifRepo *crif.Repository

	// Cache for live run status, nil to disable
	cache *redis.Cache

	logger *logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	writer *report.Writer,
	fx contracts.FxProvider,
	runRepo *report.Repository,
	crifRepo *crif.Repository,
	cache *redis.Cache,
	logger *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		writer:   writer,
		fx:       fx,
		runRepo:  runRepo,
		crifRepo: crifRepo,
		cache:    cache,
		logger:   logger,
	}
}

// RunConfig holds configuration for one margin run
type RunConfig struct {
	RunID               string
	AsOf                time.Time
	Source              contracts.CrifSource
	ParamsFile          string
	CalculationCurrency string
	ResultCurrency      string
	EnforceRegulations  bool
	Workers             int
	OutputDir           string // empty skips the report stage
	Store               bool   // persist run and results to the database
}

// RunResult holds the results of a complete margin run
type RunResult struct {
	RunID           string
	AsOf            time.Time
	Success         bool
	Error           error
	CompletedStages []string
	Stages          []contracts.PipelineResult
	Records         []contracts.CrifRecord
	Outcome         *simm.Outcome
	Summary         contracts.RunSummary
	ReportFiles     []string
	Duration        time.Duration
}

// Run executes the complete margin pipeline
// S0 → S1 → S2 → S3 → S4
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	if config.Source == nil {
		return nil, fmt.Errorf("crif source is required")
	}
	if config.ParamsFile == "" {
		return nil, fmt.Errorf("parameter file is required")
	}
	if config.RunID == "" {
		config.RunID = GenerateRunID()
	}
	if config.AsOf.IsZero() {
		config.AsOf = time.Now()
	}

	result := &RunResult{
		RunID:           config.RunID,
		AsOf:            config.AsOf,
		Success:         false,
		CompletedStages: make([]string, 0),
		Summary: contracts.RunSummary{
			RunID:               config.RunID,
			AsOf:                config.AsOf,
			CalculationCurrency: config.CalculationCurrency,
			ResultCurrency:      config.ResultCurrency,
			EnforceRegulations:  config.EnforceRegulations,
			Status:              contracts.RunStatusRunning,
			CreatedAt:           startTime,
		},
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":       config.RunID,
		"as_of":        config.AsOf.Format("2006-01-02"),
		"params_file":  config.ParamsFile,
		"calc_ccy":     config.CalculationCurrency,
		"result_ccy":   config.ResultCurrency,
		"enforce_regs": config.EnforceRegulations,
		"store":        config.Store,
	}).Info("Starting margin run")

	if config.Store && o.runRepo != nil {
		if err := o.runRepo.SaveRun(ctx, result.Summary); err != nil {
			result.Error = fmt.Errorf("save run: %w", err)
			return result, result.Error
		}
	}
	o.publish(ctx, result, contracts.StageCrif)

	// S0: CRIF load
	records, err := o.runS0(ctx, config, result)
	if err != nil {
		return o.finishFailed(ctx, config, result, contracts.StageCrif, err)
	}
	result.Records = records
	result.Summary.RecordCount = len(records)
	result.CompletedStages = append(result.CompletedStages, "S0:Crif")
	o.publish(ctx, result, contracts.StageParams)

	// S1: Parameter load
	provider, err := o.runS1(ctx, config, result)
	if err != nil {
		return o.finishFailed(ctx, config, result, contracts.StageParams, err)
	}
	result.Summary.ParamsVersion = provider.Version()
	result.Summary.ParamsHash = provider.Hash()
	result.CompletedStages = append(result.CompletedStages, "S1:Params")
	o.publish(ctx, result, contracts.StageCalculate)

	// S2: Margin calculation
	outcome, err := o.runS2(ctx, config, result, provider, records)
	if err != nil {
		return o.finishFailed(ctx, config, result, contracts.StageCalculate, err)
	}
	result.Outcome = outcome
	result.Summary.CellCount = countCells(outcome)
	result.Summary.NettingSetCount = len(outcome.Final[contracts.SideCall])
	result.CompletedStages = append(result.CompletedStages, "S2:Calculate")
	o.publish(ctx, result, contracts.StagePersist)

	// S3: Persistence (skip unless storing)
	if config.Store && o.runRepo != nil {
		if err := o.runS3(ctx, config, result, records, outcome); err != nil {
			return o.finishFailed(ctx, config, result, contracts.StagePersist, err)
		}
		result.CompletedStages = append(result.CompletedStages, "S3:Persist")
	} else {
		o.logger.Debug("Skipping S3:Persist (store disabled)")
	}
	o.publish(ctx, result, contracts.StageReport)

	// S4: Report output (skip without an output directory)
	if config.OutputDir != "" {
		files, err := o.runS4(ctx, config, result, records, outcome)
		if err != nil {
			return o.finishFailed(ctx, config, result, contracts.StageReport, err)
		}
		result.ReportFiles = files
		result.CompletedStages = append(result.CompletedStages, "S4:Report")
	} else {
		o.logger.Debug("Skipping S4:Report (no output directory)")
	}

	// Mark success
	result.Success = true
	result.Duration = time.Since(startTime)
	result.Summary.Status = contracts.RunStatusCompleted
	result.Summary.DurationMs = result.Duration.Milliseconds()

	if config.Store && o.runRepo != nil {
		if err := o.runRepo.UpdateRun(ctx, result.Summary); err != nil {
			result.Success = false
			result.Error = fmt.Errorf("update run: %w", err)
			return result, result.Error
		}
	}

	o.recordMetrics(result, outcome)
	o.publish(ctx, result, contracts.StageReport)

	o.logger.WithFields(map[string]interface{}{
		"run_id":       config.RunID,
		"records":      result.Summary.RecordCount,
		"cells":        result.Summary.CellCount,
		"netting_sets": result.Summary.NettingSetCount,
		"duration":     result.Duration.Seconds(),
		"stages":       len(result.CompletedStages),
	}).Info("✅ Margin run completed successfully")

	return result, nil
}

// runS0 executes S0: CRIF load
func (o *Orchestrator) runS0(ctx context.Context, config RunConfig, result *RunResult) ([]contracts.CrifRecord, error) {
	o.logger.Info("Running S0: CRIF load")
	start := time.Now()

	records, err := config.Source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("crif load: %w", err)
	}

	o.recordStage(result, contracts.StageCrif, start, 0, len(records), nil)
	o.logger.WithField("records", len(records)).Info("S0 completed")
	return records, nil
}

// runS1 executes S1: Parameter load
func (o *Orchestrator) runS1(ctx context.Context, config RunConfig, result *RunResult) (*simmparams.Provider, error) {
	o.logger.Info("Running S1: Parameter load")
	start := time.Now()

	params, _, err := simmparams.Load(config.ParamsFile)
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}
	provider, err := simmparams.NewProvider(params)
	if err != nil {
		return nil, fmt.Errorf("build parameter provider: %w", err)
	}

	o.recordStage(result, contracts.StageParams, start, 0, 0, map[string]interface{}{
		"version": provider.Version(),
		"hash":    provider.Hash(),
	})
	o.logger.WithFields(map[string]interface{}{
		"version": provider.Version(),
		"hash":    provider.Hash(),
	}).Info("S1 completed")
	return provider, nil
}

// runS2 executes S2: Margin calculation
func (o *Orchestrator) runS2(ctx context.Context, config RunConfig, result *RunResult,
	provider *simmparams.Provider, records []contracts.CrifRecord) (*simm.Outcome, error) {

	o.logger.Info("Running S2: Margin calculation")
	start := time.Now()

	calc, err := simm.NewCalculator(provider, o.fx, o.logger, simm.Options{
		CalculationCurrency: config.CalculationCurrency,
		ResultCurrency:      config.ResultCurrency,
		EnforceRegulations:  config.EnforceRegulations,
		Workers:             config.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("configure calculator: %w", err)
	}

	outcome, err := calc.Run(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("margin calculation: %w", err)
	}

	cells := countCells(outcome)
	o.recordStage(result, contracts.StageCalculate, start, len(records), cells, nil)
	o.logger.WithFields(map[string]interface{}{
		"cells":        cells,
		"netting_sets": len(outcome.Final[contracts.SideCall]),
	}).Info("S2 completed")
	return outcome, nil
}

// runS3 executes S3: Persistence
func (o *Orchestrator) runS3(ctx context.Context, config RunConfig, result *RunResult,
	records []contracts.CrifRecord, outcome *simm.Outcome) error {

	o.logger.Info("Running S3: Persistence")
	start := time.Now()

	if o.crifRepo != nil {
		if err := o.crifRepo.SaveRecords(ctx, config.RunID, records); err != nil {
			return fmt.Errorf("save crif records: %w", err)
		}
	}
	if err := o.runRepo.SaveResults(ctx, config.RunID, outcome); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	o.recordStage(result, contracts.StagePersist, start, len(records), countCells(outcome), nil)
	o.logger.Info("S3 completed")
	return nil
}

// runS4 executes S4: Report output
func (o *Orchestrator) runS4(ctx context.Context, config RunConfig, result *RunResult,
	records []contracts.CrifRecord, outcome *simm.Outcome) ([]string, error) {

	o.logger.Info("Running S4: Report output")
	start := time.Now()

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	files := make([]string, 0, 3)
	write := func(name string, fn func(*os.File) error) error {
		path := filepath.Join(config.OutputDir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		defer f.Close()
		if err := fn(f); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, path)
		return nil
	}

	if err := write(FinalReportFile, func(f *os.File) error {
		return o.writer.WriteFinal(f, outcome)
	}); err != nil {
		return nil, err
	}
	if err := write(FullReportFile, func(f *os.File) error {
		return o.writer.WriteFull(f, outcome)
	}); err != nil {
		return nil, err
	}
	if err := write(DataReportFile, func(f *os.File) error {
		return o.writer.WriteData(f, records)
	}); err != nil {
		return nil, err
	}

	o.recordStage(result, contracts.StageReport, start, 0, len(files), map[string]interface{}{
		"output_dir": config.OutputDir,
	})
	o.logger.WithField("files", len(files)).Info("S4 completed")
	return files, nil
}

// finishFailed finalizes a run after a stage error
func (o *Orchestrator) finishFailed(ctx context.Context, config RunConfig, result *RunResult,
	stage contracts.Stage, err error) (*RunResult, error) {

	result.Error = fmt.Errorf("%s failed: %w", stage.ShortName(), err)
	result.Duration = time.Since(result.Summary.CreatedAt)
	result.Summary.Status = contracts.RunStatusFailed
	result.Summary.Error = err.Error()
	result.Summary.DurationMs = result.Duration.Milliseconds()

	result.Stages = append(result.Stages, contracts.PipelineResult{
		Stage:   stage,
		Success: false,
		Error:   err.Error(),
	})

	if config.Store && o.runRepo != nil {
		if uerr := o.runRepo.UpdateRun(ctx, result.Summary); uerr != nil {
			o.logger.WithError(uerr).Warn("실패한 런 상태 저장 실패")
		}
	}

	metrics.RunsTotal.WithLabelValues(string(contracts.RunStatusFailed)).Inc()
	o.publish(ctx, result, stage)

	o.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"stage":  stage.ShortName(),
		"error":  err.Error(),
	}).Error("Margin run failed")

	return result, result.Error
}

// recordStage appends a successful stage result
func (o *Orchestrator) recordStage(result *RunResult, stage contracts.Stage, start time.Time,
	in, out int, metadata map[string]interface{}) {

	result.Stages = append(result.Stages, contracts.PipelineResult{
		Stage:       stage,
		Success:     true,
		InputCount:  in,
		OutputCount: out,
		Duration:    time.Since(start).Milliseconds(),
		Metadata:    metadata,
	})
}

// publish pushes the live run snapshot to the cache
func (o *Orchestrator) publish(ctx context.Context, result *RunResult, stage contracts.Stage) {
	if o.cache == nil {
		return
	}
	snapshot := contracts.RunSnapshot{
		RunID:     result.RunID,
		Status:    result.Summary.Status,
		Stage:     stage,
		Stages:    result.Stages,
		Error:     result.Summary.Error,
		UpdatedAt: time.Now().Unix(),
	}
	if err := o.cache.Set(ctx, redis.RunStatusKey(result.RunID), snapshot, redis.TTLDaily); err != nil {
		o.logger.WithError(err).Warn("런 상태 캐시 저장 실패")
	}
}

// recordMetrics updates the Prometheus collectors after a successful run
func (o *Orchestrator) recordMetrics(result *RunResult, outcome *simm.Outcome) {
	metrics.RunsTotal.WithLabelValues(string(contracts.RunStatusCompleted)).Inc()
	metrics.RunDuration.Observe(result.Duration.Seconds())
	metrics.CrifRecords.Set(float64(result.Summary.RecordCount))
	metrics.MarginTasksTotal.Add(float64(result.Summary.CellCount))

	for _, side := range contracts.Sides() {
		for _, ns := range outcome.NettingSets(side) {
			fr, ok := outcome.FinalFor(side, ns)
			if !ok {
				continue
			}
			im := fr.Results.Get(contracts.ProductClassAll, contracts.RiskClassAll,
				contracts.MarginTypeAll, contracts.BucketAll)
			metrics.PortfolioIM.WithLabelValues(string(side), ns.String()).Set(im)
		}
	}
}

func countCells(outcome *simm.Outcome) int {
	cells := 0
	for _, byNs := range outcome.Results {
		for _, byReg := range byNs {
			cells += len(byReg)
		}
	}
	return cells
}

// GenerateRunID generates a unique run ID
func GenerateRunID() string {
	return uuid.New().String()
}
