package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/internal/engine"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
)

// DefaultMarginSchedule runs after market close on weekdays
const DefaultMarginSchedule = "30 18 * * MON-FRI"

// Runner runs margin pipelines
type Runner interface {
	Run(ctx context.Context, config engine.RunConfig) (*engine.RunResult, error)
}

// MarginJob runs the daily margin calculation
// ⭐ SSOT: 마진 계산 스케줄은 이 Job에서만
type MarginJob struct {
	runner  Runner
	config  *config.Config
	logger  *logger.Logger
	running atomic.Bool
}

// NewMarginJob creates a new daily margin job
func NewMarginJob(runner Runner, cfg *config.Config, log *logger.Logger) *MarginJob {
	return &MarginJob{
		runner: runner,
		config: cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *MarginJob) Name() string {
	return "daily_margin"
}

// Schedule returns the configured cron schedule
func (j *MarginJob) Schedule() string {
	if j.config.Scheduler.CronSpec != "" {
		return j.config.Scheduler.CronSpec
	}
	return DefaultMarginSchedule
}

// Run executes the daily margin calculation. A run already in flight
// is skipped, not queued.
func (j *MarginJob) Run(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.Warn("이전 마진 런 진행 중, 이번 회차 건너뜀")
		return nil
	}
	defer j.running.Store(false)

	if j.config.Simm.CrifFile == "" {
		return fmt.Errorf("crif file not configured")
	}

	asOf := time.Now()
	j.logger.WithField("as_of", asOf.Format("2006-01-02")).Info("Starting scheduled margin run")

	runConfig := engine.RunConfig{
		AsOf:                asOf,
		Source:              crif.NewFileSource(j.config.Simm.CrifFile, j.logger),
		ParamsFile:          j.config.Simm.ParamsFile,
		CalculationCurrency: j.config.Simm.CalculationCurrency,
		ResultCurrency:      j.config.Simm.ResultCurrency,
		EnforceRegulations:  j.config.Simm.EnforceRegulations,
		Workers:             j.config.Simm.Workers,
		OutputDir:           filepath.Join(j.config.Simm.OutputDir, asOf.Format("2006-01-02")),
		Store:               true,
	}

	result, err := j.runner.Run(ctx, runConfig)
	if err != nil {
		return fmt.Errorf("margin run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":       result.RunID,
		"records":      result.Summary.RecordCount,
		"netting_sets": result.Summary.NettingSetCount,
		"reports":      len(result.ReportFiles),
	}).Info("Scheduled margin run completed successfully")

	return nil
}
