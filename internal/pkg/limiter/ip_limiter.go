/*
Package limiter throttles WebSocket upgrades per client IP and inbound frames per connection.

Both use token buckets from golang.org/x/time/rate. Idle per-IP buckets are pruned by Cleanup,
which the process scheduler runs periodically.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"pongrt/internal/pkg/errs"
	"pongrt/internal/pkg/logx"
	"pongrt/internal/pkg/resp"

	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int
}

// NewIPRateLimiter returns a limiter allowing r events per second with burst b per IP.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	l, exists := i.limits[ip]
	i.mu.RUnlock()
	if exists {
		return l
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	l, exists = i.limits[ip]
	if !exists {
		l = rate.NewLimiter(i.r, i.b)
		i.limits[ip] = l
	}
	return l
}

// Size returns the number of tracked IPs.
func (i *IPRateLimiter) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.limits)
}

// Cleanup drops buckets that are full again, meaning the IP has been idle. It returns the number removed.
func (i *IPRateLimiter) Cleanup(now time.Time) int {
	i.mu.Lock()
	removed := 0
	for ip, l := range i.limits {
		if l.TokensAt(now) >= float64(l.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}
	remaining := len(i.limits)
	i.mu.Unlock()

	if removed > 0 {
		logx.Info("Rate limiter cleanup", "removed", removed, "remaining", remaining)
	}
	return removed
}

// Middleware rejects requests over the per-IP limit with 429.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.GetLimiter(ip).Allow() {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewMessageLimiter returns the bucket used for a single connection's inbound frames.
func NewMessageLimiter(perSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
