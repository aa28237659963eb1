package api

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter provides simple per-IP token-bucket rate limiting for the
// admin API. No external storage, no background goroutines; idle entries are
// purged opportunistically to keep memory bounded.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	r       rate.Limit
	b       int
	idleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows `requests` events per second per IP with the given
// burst.
func NewIPRateLimiter(requests, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		r:        rate.Limit(requests),
		b:        burst,
		idleTTL:  10 * time.Minute,
	}
}

// Allow reports whether a request from remoteAddr (host:port) should pass.
func (rl *IPRateLimiter) Allow(remoteAddr string) bool {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.r, rl.b)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	if len(rl.visitors) > 1000 {
		rl.purge()
	}
	return v.limiter.Allow()
}

func (rl *IPRateLimiter) purge() {
	cutoff := time.Now().Add(-rl.idleTTL)
	for k, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, k)
		}
	}
}
