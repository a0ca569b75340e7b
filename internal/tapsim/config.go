// Package tapsim drives simulated players against a running tapforge
// service and checks the rank invariants on every response.
package tapsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Players       int           // Number of simulated players
	TapsPerPlayer int           // Taps each player sends
	Workers       int           // Players tapping at the same time
	TapGap        time.Duration // Wall-clock pause between a player's taps
	Secret        string        // JWT secret shared with the service
	Issuer        string        // JWT issuer expected by the service
	TopN          int           // Leaderboard entries to fetch at the end
	FlushWait     time.Duration // Wait for debounced saves before reading the leaderboard
	Timeout       time.Duration // HTTP request timeout
	Verbose       bool          // Enable verbose logging
}

// tapRequest is the body of POST /taps.
type tapRequest struct {
	TapID string `json:"tap_id"`
	TSMS  int64  `json:"ts_ms"`
}

// tapResponse is the subset of the POST /taps answer the simulator checks.
type tapResponse struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
	Delta     int64  `json:"xp_delta"`
	XP        int64  `json:"xp"`
	RankIndex int    `json:"rank_index"`
	RankName  string `json:"rank_name"`
	Drops     []struct {
		ID string `json:"id"`
	} `json:"drops"`
}

// Stats holds run statistics.
type Stats struct {
	Players        int
	TapsSent       int64
	TapsAccepted   int64
	TapsThrottled  int64
	TapsFailed     int64
	RankUps        int64
	Drops          int64
	Violations     int64
	LeaderboardLen int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
