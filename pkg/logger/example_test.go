package logger_test

import (
	"errors"

	"github.com/proquant/screener/pkg/config"
	"github.com/proquant/screener/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Refresh cycle started")
	log.Infof("Universe size: %d", 63)
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	scanLog := log.WithFields(map[string]interface{}{
		"symbol": "RELIANCE",
		"score":  85,
		"signal": "bullish",
	})
	scanLog.Info("Instrument scored")

	err := errors.New("provider timeout")
	log.WithError(err).Error("Failed to fetch bars")
}
