package api

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/studio-engine/config"
)

// =============================================================================
// RATE LIMITING - Fixed window counter in Redis
// =============================================================================

// RateLimiter counts requests per client in fixed windows. With a nil
// client or a disabled config every request passes. Redis errors also let
// the request through.
type RateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
	now func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) *RateLimiter {
	return &RateLimiter{cfg: cfg, rdb: rdb, now: time.Now}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || !l.cfg.Enabled || l.rdb == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.now()
		window := now.UnixNano() / int64(l.cfg.Window)
		key := l.key(r, window)

		pipe := l.rdb.TxPipeline()
		incr := pipe.Incr(r.Context(), key)
		pipe.Expire(r.Context(), key, l.cfg.Window)
		if _, err := pipe.Exec(r.Context()); err != nil {
			log.Printf("[RateLimit] redis error for key=%s: %v", key, err)
			next.ServeHTTP(w, r)
			return
		}

		count := incr.Val()
		remaining := int64(l.cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.cfg.Limit) {
			reset := time.Unix(0, (window+1)*int64(l.cfg.Window))
			secs := int(reset.Sub(now).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "too_many_requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) key(r *http.Request, window int64) string {
	user := ActorFrom(r.Context()).UserID
	if user == "" {
		user = "anon"
	}
	return strings.Join([]string{l.cfg.Prefix, "ip", clientIP(r), "user", user, strconv.FormatInt(window, 10)}, ":")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
