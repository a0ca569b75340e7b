package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/tapforge/internal/tapsim"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		secret    = flag.String("secret", os.Getenv("TAPFORGE_JWT_SECRET"), "JWT secret shared with the service")
		issuer    = flag.String("issuer", "tapforge", "JWT issuer")
		players   = flag.Int("players", tapsim.DefaultPlayers, "Simulated players")
		taps      = flag.Int("taps", tapsim.DefaultTapsPerPlayer, "Taps per player")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Players tapping at once")
		gap       = flag.Duration("gap", tapsim.DefaultTapGap, "Pause between a player's taps")
		topN      = flag.Int("top", tapsim.DefaultTopN, "Leaderboard entries to check")
		flushWait = flag.Duration("flush-wait", tapsim.DefaultFlushWait, "Wait for debounced saves before reading the leaderboard")
		timeout   = flag.Duration("timeout", tapsim.DefaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Also write logs to this file")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		tapsim.ShowHelp()
		return
	}
	if *secret == "" {
		os.Stderr.WriteString("-secret is required\n")
		os.Exit(2)
	}

	if err := tapsim.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	config := &tapsim.Config{
		BaseURL:       *baseURL,
		Players:       *players,
		TapsPerPlayer: *taps,
		Workers:       *workers,
		TapGap:        *gap,
		Secret:        *secret,
		Issuer:        *issuer,
		TopN:          *topN,
		FlushWait:     *flushWait,
		Timeout:       *timeout,
		Verbose:       *verbose,
	}

	if _, err := tapsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
