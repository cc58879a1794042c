package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidra/vidra-api/internal/api/shared"
)

// RateLimiter provides per-IP rate limiting for task submissions, with
// an optional Redis backend so the window is shared across replicas.
// Without Redis it degrades to a per-process in-memory window.
type RateLimiter struct {
	rpm        int
	redis      *redis.Client
	inMemMu    sync.Mutex
	inMemCount map[string]int
	inMemTTL   time.Time
}

// NewRateLimiter creates a RateLimiter allowing rpm requests per client
// IP per minute. A zero rpm disables limiting; redisClient may be nil.
func NewRateLimiter(rpm int, redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{rpm: rpm, redis: redisClient, inMemCount: map[string]int{}}
}

// key for the current minute window
func minuteKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().Unix()/60)
}

// Allow returns whether the request is allowed and remaining quota (best-effort)
func (l *RateLimiter) Allow(ip string) (bool, int) {
	if l.rpm <= 0 {
		return true, l.rpm
	}
	if l.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		key := minuteKey(ip)
		n, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis unavailable; the in-memory window still bounds a
			// single replica.
			return l.allowInMem(ip)
		}
		if n == 1 {
			_ = l.redis.Expire(ctx, key, 65*time.Second).Err()
		}
		return int(n) <= l.rpm, l.rpm - int(n)
	}
	return l.allowInMem(ip)
}

func (l *RateLimiter) allowInMem(ip string) (bool, int) {
	now := time.Now()
	l.inMemMu.Lock()
	defer l.inMemMu.Unlock()
	if now.Sub(l.inMemTTL) > 60*time.Second {
		l.inMemCount = map[string]int{}
		l.inMemTTL = now
	}
	l.inMemCount[ip]++
	n := l.inMemCount[ip]
	return n <= l.rpm, l.rpm - n
}

// Middleware rejects over-quota requests with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining := l.Allow(ClientIP(r))
		if !allowed {
			w.Header().Set("Retry-After", "60")
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		if l.rpm > 0 {
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client IP from proxy headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
