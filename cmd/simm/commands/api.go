package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/atlas/internal/api"
	"github.com/wonny/atlas/internal/api/handlers"
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

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 마진 런 조회/트리거 엔드포인트 제공
- 환율 조회 엔드포인트 제공

Endpoints:
  GET  /health                       - Health check
  GET  /api/v1/runs                  - 런 목록 조회
  POST /api/v1/runs                  - 마진 런 트리거
  GET  /api/v1/runs/{id}             - 런 메타데이터 조회
  GET  /api/v1/runs/{id}/status      - 런 진행 상태 조회
  GET  /api/v1/runs/{id}/results     - 마진 결과 조회
  GET  /api/v1/runs/{id}/final       - 최종(승자) 마진 조회
  GET  /api/v1/runs/{id}/crif        - 넷팅된 CRIF 레코드 조회
  GET  /api/v1/fx/{ccy}              - USD 환율 조회

Example:
  go run ./cmd/simm api
  go run ./cmd/simm api --port 8089`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Redis (optional)
	var redisClient *redis.Client
	var cache *redis.Cache
	var limiter *redis.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, quote cache and status queries degraded")
			redisClient = nil
		} else {
			defer redisClient.Close()
			cache = redis.NewCache(redisClient, "atlas")
			limiter = redis.NewRateLimiter(redisClient, "atlas")
		}
	}

	// 5. Create HTTP client and FX provider chain
	httpClient := httputil.New(cfg, log)
	fxProvider := fx.New(cfg, httpClient, redisClient, log)

	// Live FX feed keeps the quote cache warm while the server runs
	if cfg.FX.StreamURL != "" && cache != nil {
		stream := fx.NewStream(cfg.FX.StreamURL, cache, cfg.FX.CacheTTL, log)
		stream.OnError(func(err error) {
			log.WithError(err).Warn("FX stream error, reconnecting")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := stream.Reconnect(ctx); err != nil {
				log.WithError(err).Error("FX stream reconnect failed")
			}
		})
		if err := stream.Connect(cmd.Context()); err != nil {
			log.WithError(err).Warn("FX stream unavailable, HTTP sources only")
		} else {
			defer stream.Disconnect()
			if err := stream.Subscribe(cfg.Simm.CalculationCurrency, cfg.Simm.ResultCurrency); err != nil {
				log.WithError(err).Warn("FX stream subscribe failed")
			}
		}
	}

	// 6. Create repositories
	runRepo := report.NewRepository(db.Pool)
	crifRepo := crif.NewRepository(db.Pool)

	// 7. Create orchestrator for triggered runs
	writer := report.NewWriter(cfg.Simm.OutputThreshold, log)
	orchestrator := engine.NewOrchestrator(writer, fxProvider, runRepo, crifRepo, cache, log)

	// 8. Create handlers
	runHandler := handlers.NewRunHandler(runRepo, crifRepo, orchestrator, cache, cfg, log)
	fxHandler := handlers.NewFxHandler(fxProvider, log)

	// 9. Create router
	router := api.NewRouter(runHandler, fxHandler, limiter, log)

	// 10. Create server
	server := api.New(cfg, log, router)

	// 11. Metrics endpoint
	if cfg.MetricsEnabled {
		metrics.Init()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
		log.WithField("port", cfg.MetricsPort).Info("Metrics server started")
	}

	// 12. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/v1/runs")
	fmt.Println("  POST /api/v1/runs")
	fmt.Println("  GET  /api/v1/runs/{id}")
	fmt.Println("  GET  /api/v1/runs/{id}/status")
	fmt.Println("  GET  /api/v1/runs/{id}/results")
	fmt.Println("  GET  /api/v1/runs/{id}/final")
	fmt.Println("  GET  /api/v1/runs/{id}/crif")
	fmt.Println("  GET  /api/v1/fx/{ccy}")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
