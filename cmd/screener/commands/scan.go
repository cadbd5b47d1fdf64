package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/proquant/screener/internal/engine"
	"github.com/proquant/screener/internal/engine/ranking"
	"github.com/proquant/screener/internal/engine/scoring"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/internal/universe"
	"github.com/proquant/screener/pkg/httputil"
	"github.com/proquant/screener/pkg/logger"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "단발 스캔 실행",
	Long: `전체 유니버스를 한 번 스캔하고 랭킹을 출력합니다.

Example:
  go run ./cmd/screener scan
  go run ./cmd/screener scan --min-score 50 --top 15
  go run ./cmd/screener scan --signal bullish`,
	RunE: runScan,
}

var (
	scanMinScore int
	scanTop      int
	scanSignal   string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	// Flags
	scanCmd.Flags().IntVar(&scanMinScore, "min-score", 0, "최소 점수")
	scanCmd.Flags().IntVar(&scanTop, "top", 20, "출력 종목 수")
	scanCmd.Flags().StringVar(&scanSignal, "signal", "any", "시그널 필터 (any|bullish|bearish|neutral)")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	httpClient := httputil.New(cfg, log)
	provider := marketdata.NewYahooProvider(cfg, httpClient, log)
	uni := universe.NewLoader(httpClient, log).Load(cmd.Context())

	eng := engine.New(cfg, scoring.DefaultConfig(), provider, uni, nil, log)

	started := time.Now()
	snap, err := eng.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	filter := ranking.Filter{MinScore: scanMinScore, Signal: scanSignal}
	rows := filter.Apply(snap.Stocks)
	if scanTop > 0 && len(rows) > scanTop {
		rows = rows[:scanTop]
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Scan @ %s (%.1fs, %d stocks, %d excluded)\n",
		snap.TakenAt.Format("15:04:05"), time.Since(started).Seconds(),
		len(snap.Stocks), len(snap.Excluded))
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  %-14s %-8s %9s %8s %7s %9s\n", "SYMBOL", "SECTOR", "PRICE", "CHG%", "VOL×", "SCORE")
	fmt.Println("───────────────────────────────────────────────────────────")

	for _, row := range rows {
		fmt.Printf("  %-14s %-8s %9.2f %+7.2f%% %6.2fx %5d/%d\n",
			row.Name, row.Sector, row.LastPrice, row.PercentChange,
			row.VolumeRatio, row.Score, row.MaxScore)
	}

	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Advances %d / Declines %d\n", snap.Advances(), snap.Declines())
	for symbol, reason := range snap.Excluded {
		fmt.Printf("  ⚠️  %s skipped: %s\n", symbol, reason)
	}
	fmt.Println("═══════════════════════════════════════════════════════════")

	return nil
}
