package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/atlas/internal/scheduler"
	"github.com/wonny/atlas/internal/scheduler/jobs"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 조회
- 작업 실행 이력 조회

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/simm scheduler start
  go run ./cmd/simm scheduler list
  go run ./cmd/simm scheduler run daily_margin`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_margin: 평일 오후 6시 30분 (일일 마진 계산, SCHEDULER_CRON으로 변경 가능)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas Scheduler ===")

	// Initialize dependencies
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	jobNames := sched.GetAllJobs()

	fmt.Println("=== Registered Jobs ===")
	if len(jobNames) == 0 {
		fmt.Println("No jobs registered")
		return nil
	}

	stats := sched.GetJobStats()
	for _, name := range jobNames {
		fmt.Printf("\n📋 %s\n", name)
		if s, ok := stats[name]; ok {
			fmt.Printf("   Schedule: %s\n", s.Schedule)
		}
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	fmt.Printf("=== Running Job: %s ===\n\n", jobName)

	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Printf("\n✅ Job %s triggered\n", jobName)
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	stats := sched.GetJobStats()

	fmt.Println("=== Job Status ===")
	if len(stats) == 0 {
		fmt.Println("No job statistics available")
		return nil
	}

	for name, s := range stats {
		fmt.Printf("\n📋 %s\n", name)
		fmt.Printf("   Schedule: %s\n", s.Schedule)
		fmt.Printf("   Total Runs: %d\n", s.TotalRuns)
		fmt.Printf("   Success: %d / Failure: %d\n", s.SuccessCount, s.FailureCount)
		fmt.Printf("   Success Rate: %.1f%%\n", s.SuccessRate*100)
		if s.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", s.LastRun.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

// initScheduler wires the scheduler with the daily margin job
func initScheduler() (*scheduler.Scheduler, func(), error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Orchestrator with persistence (scheduled runs always store)
	orchestrator, cleanup, err := initOrchestrator(cfg, log, true)
	if err != nil {
		return nil, cleanup, err
	}

	// 4. Create scheduler and register jobs
	sched := scheduler.New(log)
	marginJob := jobs.NewMarginJob(orchestrator, cfg, log)
	if err := sched.AddJob(marginJob); err != nil {
		return nil, cleanup, fmt.Errorf("add margin job: %w", err)
	}

	return sched, cleanup, nil
}
