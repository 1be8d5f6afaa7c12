package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/internal/engine"
	"github.com/wonny/atlas/internal/fx"
	"github.com/wonny/atlas/internal/report"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/database"
	"github.com/wonny/atlas/pkg/httputil"
	"github.com/wonny/atlas/pkg/logger"
	"github.com/wonny/atlas/pkg/metrics"
	"github.com/wonny/atlas/pkg/redis"
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "SIMM 마진 계산 실행",
	Long: `CRIF 파일로부터 전체 마진 파이프라인을 실행합니다.

S0 → S1 → S2 → S3 → S4

각 단계:
- S0: CRIF 적재 및 넷팅
- S1: SIMM 파라미터 적재
- S2: 마진 계산 (규제 분리 → 버킷 마진 → 롤업 → 승자 선정)
- S3: 결과 저장
- S4: CSV 리포트 출력

Flags:
  --crif        CRIF CSV 파일 (기본: SIMM_CRIF_FILE)
  --as-of       평가 기준일 (기본: 오늘)
  --no-store    DB 저장 생략
  --no-report   CSV 리포트 생략

Example:
  go run ./cmd/simm calculate --crif crif.csv
  go run ./cmd/simm calculate --crif crif.csv --as-of 2026-08-27
  go run ./cmd/simm calculate --crif crif.csv --no-store --result-ccy EUR`,
	RunE: runCalculate,
}

var (
	calcCrifFile   string
	calcParamsFile string
	calcDate       string
	calcCalcCcy    string
	calcResultCcy  string
	calcWorkers    int
	calcOutputDir  string
	calcNoStore    bool
	calcNoReport   bool
	calcNoEnforce  bool
)

func init() {
	rootCmd.AddCommand(calculateCmd)

	// Flags
	calculateCmd.Flags().StringVar(&calcCrifFile, "crif", "", "CRIF CSV 파일 (기본: SIMM_CRIF_FILE)")
	calculateCmd.Flags().StringVar(&calcParamsFile, "params", "", "SIMM 파라미터 YAML (기본: SIMM_PARAMS_FILE)")
	calculateCmd.Flags().StringVar(&calcDate, "as-of", "", "평가 기준일 (YYYY-MM-DD, 기본: 오늘)")
	calculateCmd.Flags().StringVar(&calcCalcCcy, "calc-ccy", "", "SIMM 계산 통화 (기본: SIMM_CALC_CCY)")
	calculateCmd.Flags().StringVar(&calcResultCcy, "result-ccy", "", "결과 통화 (기본: SIMM_RESULT_CCY)")
	calculateCmd.Flags().IntVar(&calcWorkers, "workers", 0, "마진 계산 워커 수 (0 = GOMAXPROCS)")
	calculateCmd.Flags().StringVar(&calcOutputDir, "output", "", "리포트 출력 디렉터리 (기본: SIMM_OUTPUT_DIR/날짜)")
	calculateCmd.Flags().BoolVar(&calcNoStore, "no-store", false, "DB 저장 생략")
	calculateCmd.Flags().BoolVar(&calcNoReport, "no-report", false, "CSV 리포트 생략")
	calculateCmd.Flags().BoolVar(&calcNoEnforce, "no-enforce-regs", false, "규제 분리 없이 전체 레코드로 계산")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas SIMM Calculation ===")

	// Parse date
	var asOf time.Time
	if calcDate != "" {
		parsed, err := time.Parse("2006-01-02", calcDate)
		if err != nil {
			return fmt.Errorf("invalid date format: %w", err)
		}
		asOf = parsed
	} else {
		asOf = time.Now()
	}

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flag overrides
	if calcCrifFile == "" {
		calcCrifFile = cfg.Simm.CrifFile
	}
	if calcCrifFile == "" {
		return fmt.Errorf("CRIF file is required (--crif or SIMM_CRIF_FILE)")
	}
	if calcParamsFile != "" {
		cfg.Simm.ParamsFile = calcParamsFile
	}
	if calcCalcCcy != "" {
		cfg.Simm.CalculationCurrency = calcCalcCcy
	}
	if calcResultCcy != "" {
		cfg.Simm.ResultCurrency = calcResultCcy
	}
	if calcWorkers > 0 {
		cfg.Simm.Workers = calcWorkers
	}
	if calcNoEnforce {
		cfg.Simm.EnforceRegulations = false
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	fmt.Printf("\n📅 As Of: %s\n", asOf.Format("2006-01-02"))
	fmt.Printf("📄 CRIF: %s\n", calcCrifFile)
	fmt.Printf("📐 Params: %s\n", cfg.Simm.ParamsFile)
	fmt.Printf("💱 Currencies: calc=%s result=%s\n\n", cfg.Simm.CalculationCurrency, cfg.Simm.ResultCurrency)

	// 3. Initialize orchestrator and dependencies
	orchestrator, cleanup, err := initOrchestrator(cfg, log, !calcNoStore)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	defer cleanup()

	// 4. Create run config
	runConfig := engine.RunConfig{
		RunID:               engine.GenerateRunID(),
		AsOf:                asOf,
		Source:              crif.NewFileSource(calcCrifFile, log),
		ParamsFile:          cfg.Simm.ParamsFile,
		CalculationCurrency: cfg.Simm.CalculationCurrency,
		ResultCurrency:      cfg.Simm.ResultCurrency,
		EnforceRegulations:  cfg.Simm.EnforceRegulations,
		Workers:             cfg.Simm.Workers,
		Store:               !calcNoStore,
	}
	if !calcNoReport {
		if calcOutputDir != "" {
			runConfig.OutputDir = calcOutputDir
		} else {
			runConfig.OutputDir = filepath.Join(cfg.Simm.OutputDir, asOf.Format("2006-01-02"))
		}
	}

	fmt.Printf("🚀 Starting margin run: %s\n\n", runConfig.RunID)

	// 5. Execute pipeline
	result, err := orchestrator.Run(cmd.Context(), runConfig)
	if err != nil {
		return fmt.Errorf("margin run failed: %w", err)
	}

	// 6. Print results
	printRunResult(result)

	return nil
}

// initOrchestrator wires the margin pipeline from configuration. The
// database is only connected when persistence is requested; Redis is
// optional and its absence just disables quote caching and run-status
// publishing.
func initOrchestrator(cfg *config.Config, log *logger.Logger, store bool) (*engine.Orchestrator, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. Database (persistence only)
	var runRepo *report.Repository
	var crifRepo *crif.Repository
	if store {
		db, err := database.New(cfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, db.Close)
		runRepo = report.NewRepository(db.Pool)
		crifRepo = crif.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 2. Redis (optional)
	var redisClient *redis.Client
	var cache *redis.Cache
	if cfg.Redis.Enabled {
		rc, err := redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, quote cache and status publishing disabled")
		} else {
			redisClient = rc
			closers = append(closers, func() { rc.Close() })
			cache = redis.NewCache(rc, "atlas")
		}
	}

	// 3. FX provider chain
	httpClient := httputil.New(cfg, log)
	fxProvider := fx.New(cfg, httpClient, redisClient, log)

	// 4. Report writer
	writer := report.NewWriter(cfg.Simm.OutputThreshold, log)

	// 5. Metrics
	if cfg.MetricsEnabled {
		metrics.Init()
	}

	orchestrator := engine.NewOrchestrator(writer, fxProvider, runRepo, crifRepo, cache, log)
	return orchestrator, cleanup, nil
}

func printRunResult(result *engine.RunResult) {
	fmt.Println("\n✅ Margin Run Completed")
	fmt.Println()

	// Summary
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("As Of: %s\n", result.AsOf.Format("2006-01-02"))
	fmt.Printf("Duration: %.2fs\n", result.Duration.Seconds())
	fmt.Printf("Success: %v\n", result.Success)
	fmt.Println()

	// Stages
	fmt.Println("Completed Stages:")
	for _, stage := range result.CompletedStages {
		fmt.Printf("  ✅ %s\n", stage)
	}
	fmt.Println()

	// Results
	fmt.Printf("CRIF Records: %d\n", result.Summary.RecordCount)
	fmt.Printf("Parameters: %s (%s)\n", result.Summary.ParamsVersion, shortHash(result.Summary.ParamsHash))
	fmt.Printf("Margin Cells: %d\n", result.Summary.CellCount)
	fmt.Printf("Netting Sets: %d\n", result.Summary.NettingSetCount)
	fmt.Println()

	// Published margins per side and netting set
	if result.Outcome != nil {
		for _, side := range contracts.Sides() {
			sets := result.Outcome.NettingSets(side)
			if len(sets) == 0 {
				continue
			}
			fmt.Printf("%s side:\n", side)
			for _, ns := range sets {
				final, _ := result.Outcome.FinalFor(side, ns)
				im := 0.0
				ccy := result.Summary.ResultCurrency
				if final.Results != nil {
					im = final.Results.Get(contracts.ProductClassAll, contracts.RiskClassAll, contracts.MarginTypeAll, contracts.BucketAll)
					ccy = final.Results.Currency()
				}
				reg := final.Regulation
				if reg == "" {
					reg = "-"
				}
				fmt.Printf("  %-20s IM=%.2f %s (regulation: %s)\n", ns.ID, im, ccy, reg)
			}
		}
		fmt.Println()
	}

	if len(result.ReportFiles) > 0 {
		fmt.Println("Reports:")
		for _, f := range result.ReportFiles {
			fmt.Printf("  📄 %s\n", f)
		}
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
