package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proquant/screener/internal/engine"
	"github.com/proquant/screener/internal/engine/scoring"
	"github.com/proquant/screener/internal/marketdata"
	"github.com/proquant/screener/internal/universe"
	"github.com/proquant/screener/pkg/httputil"
	"github.com/proquant/screener/pkg/logger"
)

// breakoutCmd represents the breakout command
var breakoutCmd = &cobra.Command{
	Use:   "breakout",
	Short: "지수 박스 돌파 판정",
	Long: `옵션 지수(NIFTY 50 / BANK NIFTY / FIN NIFTY)의
시간봉 박스 돌파 상태를 한 번 판정해 출력합니다.

Example:
  go run ./cmd/screener breakout`,
	RunE: runBreakout,
}

func init() {
	rootCmd.AddCommand(breakoutCmd)
}

func runBreakout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	httpClient := httputil.New(cfg, log)
	provider := marketdata.NewYahooProvider(cfg, httpClient, log)
	uni := universe.Default()

	eng := engine.New(cfg, scoring.DefaultConfig(), provider, uni, nil, log)

	snap, err := eng.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("evaluate breakout: %w", err)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Box Breakout @ %s\n", snap.TakenAt.Format("15:04:05"))
	fmt.Println("───────────────────────────────────────────────────────────")

	for _, result := range snap.Breakouts {
		marker := "  "
		if result.Actionable() {
			marker = "✅"
		}
		fmt.Printf("%s %-11s %-8s %-18s box %.2f-%.2f  last %.2f  vwap %.2f\n",
			marker, result.Name, result.Action, result.Reason,
			result.BoxLow, result.BoxHigh, result.LastPrice, result.VWAP)
	}

	fmt.Println("═══════════════════════════════════════════════════════════")

	return nil
}
