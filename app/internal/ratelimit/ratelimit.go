package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter implements a per-key token bucket rate limiter
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	tokensPerMin  int
	maxTokens     int
	errorMessage  string
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Config for creating a new rate limiter
type Config struct {
	TokensPerMinute int    // Number of tokens added per minute
	MaxTokens       int    // Maximum tokens that can be accumulated
	ErrorMessage    string // Message to return when rate limited
}

// New creates a new rate limiter
func New(cfg Config) *Limiter {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = cfg.TokensPerMinute
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "Too many requests. Please slow down."
	}

	l := &Limiter{
		buckets:      make(map[string]*bucket),
		tokensPerMin: cfg.TokensPerMinute,
		maxTokens:    cfg.MaxTokens,
		errorMessage: cfg.ErrorMessage,
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
	}

	// Start cleanup goroutine to remove stale buckets
	l.cleanupTicker = time.NewTicker(5 * time.Minute)
	go l.cleanup()

	return l
}

// NewWriteLimiter limits incident writes to 30 per minute per IP
func NewWriteLimiter() *Limiter {
	return New(Config{
		TokensPerMinute: 30,
		MaxTokens:       30,
		ErrorMessage:    "Too many incident updates. Please slow down.",
	})
}

// NewProbeLimiter limits caller-supplied probe targets to 30 per minute per IP
func NewProbeLimiter() *Limiter {
	return New(Config{
		TokensPerMinute: 30,
		MaxTokens:       30,
		ErrorMessage:    "Too many status check requests. Please slow down.",
	})
}

// NewAuthFailureLimiter allows 10 failed admin logins per minute per IP
func NewAuthFailureLimiter() *Limiter {
	return New(Config{
		TokensPerMinute: 10,
		MaxTokens:       10,
		ErrorMessage:    "Too many failed login attempts. Please try again later.",
	})
}

// cleanup removes stale buckets periodically
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.sweep(10 * time.Minute)
		case <-l.stopCleanup:
			l.cleanupTicker.Stop()
			return
		}
	}
}

func (l *Limiter) sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastCheck) > idle {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

// Allow checks if a request is allowed for the given key (usually IP address)
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN checks if n requests are allowed
func (l *Limiter) AllowN(key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// Exhausted reports whether key has no tokens left, without consuming one
func (l *Limiter) Exhausted(key string) bool {
	return l.Remaining(key) < 1
}

// refill returns the bucket for key topped up for the elapsed time. Caller
// holds l.mu.
func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.maxTokens), lastCheck: now}
		l.buckets[key] = b
	}
	elapsed := now.Sub(b.lastCheck).Minutes()
	b.tokens += elapsed * float64(l.tokensPerMin)
	if b.tokens > float64(l.maxTokens) {
		b.tokens = float64(l.maxTokens)
	}
	b.lastCheck = now
	return b
}

// Remaining returns the number of remaining tokens for a key
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		return l.maxTokens
	}
	elapsed := l.now().Sub(b.lastCheck).Minutes()
	tokens := b.tokens + elapsed*float64(l.tokensPerMin)
	if tokens > float64(l.maxTokens) {
		tokens = float64(l.maxTokens)
	}
	return int(tokens)
}

// RetryAfter estimates how long until key earns its next token
func (l *Limiter) RetryAfter(key string) time.Duration {
	if l.tokensPerMin <= 0 {
		return time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok || b.tokens >= 1 {
		return 0
	}
	missing := 1 - b.tokens
	return time.Duration(missing / float64(l.tokensPerMin) * float64(time.Minute)).Round(time.Second)
}

// ErrorMessage returns the error message for this limiter
func (l *Limiter) ErrorMessage() string {
	return l.errorMessage
}

// Reset resets the bucket for a key (useful after successful login)
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Middleware rejects requests whose key has run out of tokens with a 429
// and a {success:false, error} body.
func (l *Limiter) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if !l.Allow(k) {
				l.Reject(w, k)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Reject writes the rate limited response for key
func (l *Limiter) Reject(w http.ResponseWriter, key string) {
	if d := l.RetryAfter(key); d > 0 {
		secs := int(d / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   l.errorMessage,
	})
}
