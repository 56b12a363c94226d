package middleware

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a fixed-window per-IP limiter. Good enough for keeping
// credential stuffing off the auth endpoints; not a distributed limiter.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	requests  map[string]int
	lastReset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	limiter := &RateLimiter{
		limit:     limit,
		window:    window,
		requests:  make(map[string]int),
		lastReset: time.Now(),
	}

	go limiter.cleanup()

	return limiter
}

func (r *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.Lock()
		now := time.Now()
		for ip, count := range r.requests {
			if count == 0 && now.Sub(r.lastReset) > time.Hour {
				delete(r.requests, ip)
			}
		}
		r.mu.Unlock()
	}
}

func (r *RateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.lastReset) > r.window {
		r.requests = make(map[string]int)
		r.lastReset = time.Now()
	}

	count := r.requests[ip]
	if count >= r.limit {
		return false
	}

	r.requests[ip] = count + 1
	return true
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			ip = req.RemoteAddr
		}
		if !r.Allow(ip) {
			log.Printf("rate limit exceeded for IP: %s", ip)
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, req)
	})
}
