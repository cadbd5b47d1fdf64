package commands

import (
	"github.com/spf13/cobra"

	"github.com/proquant/screener/pkg/config"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "NSE 장중 컨빅션 스크리너",
	Long: `NSE Conviction Screener CLI

F&O 종목을 주기적으로 스캔해 돌파/섹터 동조/거래량 기반
컨빅션 점수로 랭킹하고, 옵션 지수 박스 돌파를 판정합니다.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener api
  go run ./cmd/screener scan --min-score 50
  go run ./cmd/screener breakout`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads configuration honoring the global flags
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}
