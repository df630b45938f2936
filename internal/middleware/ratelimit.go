package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	"golang.org/x/time/rate"
)

// visitor holds the rate limiter and the last time we saw this IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP rps requests per second with bursts of burst.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *RateLimiter) getVisitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// Cleanup forgets clients that have been quiet for longer than idle.
func (l *RateLimiter) Cleanup(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > idle {
			delete(l.visitors, ip)
		}
	}
}

// Handler rejects requests over the client's limit with 429.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.getVisitor(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			httputil.TooManyRequests(w, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
