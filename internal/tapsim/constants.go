package tapsim

import "time"

// Simulation defaults.
const (
	DefaultPlayers       = 50
	DefaultTapsPerPlayer = 200
	DefaultTapGap        = 150 * time.Millisecond
	DefaultTopN          = 20
	DefaultFlushWait     = 6 * time.Second
	DefaultTimeout       = 10 * time.Second
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	playerIDPrefix       = "sim-"
	maxErrorBody         = 512
)
