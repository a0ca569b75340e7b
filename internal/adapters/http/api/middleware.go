package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/okian/tapforge/internal/game"
	"github.com/okian/tapforge/pkg/auth"
	"github.com/okian/tapforge/pkg/metrics"
)

// SessionHeader carries the anonymous session id. It is generated and
// echoed when a request arrives without one.
const SessionHeader = "X-Session-ID"

const maxSessionIDLen = 128

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

type identityKey struct{}

// identityFrom returns the identity resolved by the identity middleware.
func identityFrom(ctx context.Context) game.Identity {
	id, _ := ctx.Value(identityKey{}).(game.Identity)
	return id
}

// identity resolves who is calling and throttles each caller with its own
// token bucket.
type identity struct {
	tokens TokenVerifier
	rps    rate.Limit
	burst  int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

func newIdentity(tokens TokenVerifier, rps float64, burst, maxLimiters int) *identity {
	limiters, _ := lru.New[string, *rate.Limiter](maxLimiters)
	return &identity{tokens: tokens, rps: rate.Limit(rps), burst: burst, limiters: limiters}
}

func (i *identity) resolve(w http.ResponseWriter, r *http.Request) (game.Identity, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, auth.BearerPrefix)
		if !ok || i.tokens == nil {
			return game.Identity{}, ErrUnauthorized
		}
		playerID, err := i.tokens.Verify(token)
		if err != nil {
			return game.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return game.Identity{PlayerID: playerID}, nil
	}
	sid := strings.TrimSpace(r.Header.Get(SessionHeader))
	if len(sid) > maxSessionIDLen {
		return game.Identity{}, fmt.Errorf("%w: session id too long", ErrBadRequest)
	}
	if sid == "" {
		sid = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sid)
	return game.Identity{SessionID: sid}, nil
}

func (i *identity) allow(key string) bool {
	if i.rps <= 0 {
		return true
	}
	i.mu.Lock()
	l, ok := i.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(i.rps, i.burst)
		i.limiters.Add(key, l)
	}
	i.mu.Unlock()
	return l.Allow()
}

func (i *identity) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := i.resolve(w, r)
		switch {
		case errors.Is(err, ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid_token", err)
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		if !i.allow(id.Key()) {
			metrics.RecordIngressThrottled()
			writeError(w, http.StatusTooManyRequests, "throttled", ErrThrottled)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	}
}
