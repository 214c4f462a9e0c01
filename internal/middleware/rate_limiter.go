package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter implements per-client rate limiting for the public endpoints.
// Task starts are the abuse target in a watch-and-earn system, so they get
// their own tighter limiter.
type RateLimiter struct {
	ipLimiters    map[string]*rate.Limiter
	taskLimiters  map[string]*rate.Limiter
	ipMutex       sync.RWMutex
	taskMutex     sync.RWMutex
	ipRate        rate.Limit
	taskRate      rate.Limit
	ipBurst       int
	taskBurst     int
	cleanupTicker *time.Ticker
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ipRequestsPerSecond, taskRequestsPerMinute float64, ipBurst, taskBurst int) *RateLimiter {
	limiter := &RateLimiter{
		ipLimiters:    make(map[string]*rate.Limiter),
		taskLimiters:  make(map[string]*rate.Limiter),
		ipRate:        rate.Limit(ipRequestsPerSecond),
		taskRate:      rate.Limit(taskRequestsPerMinute / 60),
		ipBurst:       ipBurst,
		taskBurst:     taskBurst,
		cleanupTicker: time.NewTicker(5 * time.Minute),
	}

	go limiter.cleanup()

	return limiter
}

// cleanup periodically resets the limiter maps to prevent unbounded growth
func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.ipMutex.Lock()
		rl.ipLimiters = make(map[string]*rate.Limiter)
		rl.ipMutex.Unlock()

		rl.taskMutex.Lock()
		rl.taskLimiters = make(map[string]*rate.Limiter)
		rl.taskMutex.Unlock()
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
}

// getIPLimiter returns the rate limiter for an IP
func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	rl.ipMutex.RLock()
	limiter, exists := rl.ipLimiters[ip]
	rl.ipMutex.RUnlock()

	if !exists {
		rl.ipMutex.Lock()
		limiter = rate.NewLimiter(rl.ipRate, rl.ipBurst)
		rl.ipLimiters[ip] = limiter
		rl.ipMutex.Unlock()
	}

	return limiter
}

// getTaskLimiter returns the rate limiter for task starts from one client
func (rl *RateLimiter) getTaskLimiter(key string) *rate.Limiter {
	rl.taskMutex.RLock()
	limiter, exists := rl.taskLimiters[key]
	rl.taskMutex.RUnlock()

	if !exists {
		rl.taskMutex.Lock()
		limiter = rate.NewLimiter(rl.taskRate, rl.taskBurst)
		rl.taskLimiters[key] = limiter
		rl.taskMutex.Unlock()
	}

	return limiter
}

// IPRateLimiterMiddleware limits requests per client IP
func (rl *RateLimiter) IPRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getIPLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// TaskRateLimiterMiddleware limits task-start attempts per client IP
func (rl *RateLimiter) TaskRateLimiterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getTaskLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many task attempts, slow down"})
			c.Abort()
			return
		}
		c.Next()
	}
}
