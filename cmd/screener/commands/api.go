package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/proquant/screener/internal/api"
	"github.com/proquant/screener/internal/api/handlers"
	"github.com/proquant/screener/internal/engine"
	"github.com/proquant/screener/internal/engine/scoring"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/internal/scheduler"
	"github.com/proquant/screener/internal/scheduler/jobs"
	"github.com/proquant/screener/internal/universe"
	"github.com/proquant/screener/pkg/httputil"
	"github.com/proquant/screener/pkg/logger"
	"github.com/proquant/screener/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `스크리너 API 서버를 시작합니다.

이 명령어는:
- 5분 주기 스캔 스케줄러 시작
- HTTP API 서버 시작
- 스냅샷 websocket 스트림 제공

Endpoints:
  GET  /health          - Health check
  GET  /api/stocks      - 랭킹된 종목 (필터: min_score, min_vol_ratio, signal, q)
  GET  /api/sectors     - 섹터 집계
  GET  /api/indices     - 지수 시세
  GET  /api/breakout    - 지수 박스 돌파 판정
  GET  /api/overview    - 시장 요약
  POST /api/refresh     - 수동 스캔 트리거
  GET  /ws              - 스냅샷 스트림

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== NSE Conviction Screener API ===")

	// 1. Load config
	cfg, err := loadConfig()
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

	// 3. Connect to redis (optional snapshot mirror)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "screener")

	// 4. Create HTTP client and market data provider
	// The shared limiter keeps multiple processes under the provider quota
	httpClient := httputil.New(cfg, log).
		WithRateLimiter(redis.NewRateLimiter(redisClient, "screener"), redis.YahooRateLimit)
	provider := marketdata.NewYahooProvider(cfg, httpClient, log)

	// 5. Build the universe (scraped F&O list with static fallback)
	loader := universe.NewLoader(httpClient, log)
	uni := loader.Load(cmd.Context())

	// 6. Create the scan engine and warm the first snapshot
	eng := engine.New(cfg, scoring.DefaultConfig(), provider, uni, cache, log)
	if _, err := eng.Refresh(cmd.Context()); err != nil {
		log.WithError(err).Warn("Initial scan failed, serving on demand")
	}

	// 7. Start the refresh scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewRefreshJob(eng, log)); err != nil {
		return fmt.Errorf("schedule refresh job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// 8. Create handlers and router
	scanHandler := handlers.NewScanHandler(eng, log)
	streamHandler := handlers.NewStreamHandler(eng, 5*time.Second, log)
	router := api.NewRouter(scanHandler, streamHandler, log)

	// 9. Create server
	server := api.New(cfg, log, router)

	// 10. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/stocks")
	fmt.Println("  GET  /api/sectors")
	fmt.Println("  GET  /api/indices")
	fmt.Println("  GET  /api/breakout")
	fmt.Println("  GET  /api/overview")
	fmt.Println("  POST /api/refresh")
	fmt.Println("  GET  /ws")
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
