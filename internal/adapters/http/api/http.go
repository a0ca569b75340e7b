// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/tapforge/internal/domain/model"
	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/game"
)

// Sessions resolves the live session of an identity.
type Sessions interface {
	Get(ctx context.Context, id game.Identity) (*game.Session, error)
}

// Leaderboard reads the top stored progress records.
type Leaderboard interface {
	TopProgress(ctx context.Context, limit int) ([]model.PlayerProgress, error)
}

// TokenVerifier returns the player id carried by a bearer token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Dependencies required by HTTP handlers.
type Dependencies struct {
	Sessions    Sessions
	Leaderboard Leaderboard
	Stats       StatsProvider
	Table       *rank.Table
	Recipes     RecipeBook
	Tokens      TokenVerifier
}

// Server wires HTTP routes for the game API.
type Server struct {
	identity *identity

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	tapsHandler        *TapsHandler
	craftHandler       *CraftHandler
	rewardsHandler     *RewardsHandler
	progressHandler    *ProgressHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	recipeHandler      *RecipeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		identity:           newIdentity(deps.Tokens, o.ingressRPS, o.ingressBurst, o.maxLimiters),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps.Stats),
		tapsHandler:        NewTapsHandler(deps.Sessions),
		craftHandler:       NewCraftHandler(deps.Sessions),
		rewardsHandler:     NewRewardsHandler(deps.Sessions, o.maxReward),
		progressHandler:    NewProgressHandler(deps.Sessions),
		leaderboardHandler: NewLeaderboardHandler(deps.Leaderboard, deps.Table, o.maxLeaderboard),
		rankHandler:        NewRankHandler(deps.Table),
		recipeHandler:      NewRecipeHandler(deps.Recipes),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/ranks", MetricsMiddleware(s.rankHandler.HandleGetRanks, "ranks"))
	mux.HandleFunc("/recipes", MetricsMiddleware(s.recipeHandler.HandleGetRecipes, "recipes"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))

	mux.HandleFunc("/taps", MetricsMiddleware(s.identity.wrap(s.tapsHandler.HandlePostTap), "taps"))
	mux.HandleFunc("/craft", MetricsMiddleware(s.identity.wrap(s.craftHandler.HandlePostCraft), "craft"))
	mux.HandleFunc("/rewards", MetricsMiddleware(s.identity.wrap(s.rewardsHandler.HandlePostReward), "rewards"))
	mux.HandleFunc("/progress", MetricsMiddleware(s.identity.wrap(s.progressHandler.HandleGetProgress), "progress"))
	mux.HandleFunc("/inventory", MetricsMiddleware(s.identity.wrap(s.progressHandler.HandleGetInventory), "inventory"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

const maxBodyBytes = 64 << 10
