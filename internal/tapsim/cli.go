package tapsim

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/tapforge/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the logger, writing to stdout and, when logFile
// is set, to that file too.
func SetupLogging(logFile string, verbose bool) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`tapforge tap simulator
======================

Drives simulated players against a running tapforge service and checks
after every tap that rank_index is the rank derived from xp and that rank
never goes down. Finally checks the leaderboard ordering.

Usage:
  go run ./cmd/tap-sim [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -secret string     JWT secret shared with the service (required)
  -issuer string     JWT issuer (default "tapforge")
  -players int       Simulated players (default 50)
  -taps int          Taps per player (default 200)
  -workers int       Players tapping at once (default CPU cores * 2)
  -gap duration      Pause between a player's taps (default 150ms)
  -top int           Leaderboard entries to check (default 20)
  -flush-wait dur    Wait for debounced saves before the leaderboard (default 6s)
  -timeout duration  HTTP request timeout (default 10s)
  -log string        Also write logs to this file
  -verbose           Enable verbose logging
  -help              Show this help message

Examples:
  TAPFORGE_JWT_SECRET=dev go run ./cmd &
  go run ./cmd/tap-sim -secret dev -players 100 -taps 500
`)
}
