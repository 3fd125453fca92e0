package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultMaxTokens(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, ErrorMessage: "rate limited"})
	defer l.Stop()

	if l.maxTokens != 10 {
		t.Errorf("expected maxTokens=10, got %d", l.maxTokens)
	}
}

func TestNew_CustomMaxTokens(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 20, ErrorMessage: "rate limited"})
	defer l.Stop()

	if l.maxTokens != 20 {
		t.Errorf("expected maxTokens=20, got %d", l.maxTokens)
	}
}

func TestAllow_WithinLimit(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 10})
	defer l.Stop()

	for i := 0; i < 10; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestAllow_ExceedsLimit(t *testing.T) {
	l := New(Config{TokensPerMinute: 5, MaxTokens: 5})
	defer l.Stop()

	// Drain all tokens
	for i := 0; i < 5; i++ {
		l.Allow("1.2.3.4")
	}

	// Next request should be denied
	if l.Allow("1.2.3.4") {
		t.Error("request should be denied after exceeding limit")
	}
}

func TestAllow_DifferentKeys(t *testing.T) {
	l := New(Config{TokensPerMinute: 2, MaxTokens: 2})
	defer l.Stop()

	// Drain IP1
	l.Allow("ip1")
	l.Allow("ip1")

	// IP2 should still be allowed
	if !l.Allow("ip2") {
		t.Error("different key should have its own bucket")
	}

	// IP1 should now be blocked
	if l.Allow("ip1") {
		t.Error("ip1 should be rate limited")
	}
}

func TestAllowN(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 10})
	defer l.Stop()

	if !l.AllowN("key", 5) {
		t.Error("AllowN(5) should pass when 10 tokens available")
	}

	if !l.AllowN("key", 5) {
		t.Error("AllowN(5) should pass when 5 tokens remaining")
	}

	if l.AllowN("key", 1) {
		t.Error("AllowN(1) should fail when 0 tokens remaining")
	}
}

func TestRemaining(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 10})
	defer l.Stop()

	rem := l.Remaining("new-key")
	if rem != 10 {
		t.Errorf("expected 10 remaining for new key, got %d", rem)
	}

	l.Allow("new-key")
	rem = l.Remaining("new-key")
	if rem != 9 {
		t.Errorf("expected 9 remaining after 1 request, got %d", rem)
	}
}

func TestReset(t *testing.T) {
	l := New(Config{TokensPerMinute: 5, MaxTokens: 5})
	defer l.Stop()

	// Drain all tokens
	for i := 0; i < 5; i++ {
		l.Allow("victim")
	}

	if l.Allow("victim") {
		t.Error("should be rate limited")
	}

	// Reset
	l.Reset("victim")

	// Should be allowed again
	if !l.Allow("victim") {
		t.Error("should be allowed after reset")
	}
}

func TestErrorMessage(t *testing.T) {
	msg := "custom rate limit message"
	l := New(Config{TokensPerMinute: 1, ErrorMessage: msg})
	defer l.Stop()

	if l.ErrorMessage() != msg {
		t.Errorf("expected %q, got %q", msg, l.ErrorMessage())
	}
}

func TestTokenRefill(t *testing.T) {
	l := New(Config{TokensPerMinute: 60, MaxTokens: 60}) // 1 per second
	defer l.Stop()
	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	// Drain all tokens
	for i := 0; i < 60; i++ {
		l.Allow("refill-test")
	}
	if l.Allow("refill-test") {
		t.Error("should be rate limited after draining")
	}

	clock = clock.Add(1500 * time.Millisecond)
	if !l.Allow("refill-test") {
		t.Error("should be allowed after 1.5s of refill")
	}
	if l.Allow("refill-test") {
		t.Error("only one whole token should have been refilled")
	}
}

func TestRetryAfter(t *testing.T) {
	l := New(Config{TokensPerMinute: 6, MaxTokens: 1}) // 1 per 10s
	defer l.Stop()
	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if d := l.RetryAfter("k"); d != 0 {
		t.Errorf("unknown key should not wait, got %v", d)
	}
	l.Allow("k")
	if d := l.RetryAfter("k"); d != 10*time.Second {
		t.Errorf("RetryAfter = %v, want 10s", d)
	}
}

func TestExhausted(t *testing.T) {
	l := New(Config{TokensPerMinute: 1, MaxTokens: 1})
	defer l.Stop()

	if l.Exhausted("k") {
		t.Error("fresh key should not be exhausted")
	}
	l.Allow("k")
	if !l.Exhausted("k") {
		t.Error("key should be exhausted after its only token")
	}
}

func TestSweep(t *testing.T) {
	l := New(Config{TokensPerMinute: 10})
	defer l.Stop()
	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	l.Allow("stale")
	clock = clock.Add(11 * time.Minute)
	l.Allow("fresh")
	l.sweep(10 * time.Minute)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.buckets["stale"]; ok {
		t.Error("stale bucket should be swept")
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Error("fresh bucket should survive")
	}
}

func TestStop(t *testing.T) {
	l := New(Config{TokensPerMinute: 10})
	l.Stop()
	l.Stop()
	// Just verify it doesn't panic or deadlock
}

// --- Presets ---

func TestPresets_ErrorMessages(t *testing.T) {
	for name, l := range map[string]*Limiter{
		"write":        NewWriteLimiter(),
		"probe":        NewProbeLimiter(),
		"auth failure": NewAuthFailureLimiter(),
	} {
		if l.ErrorMessage() == "" {
			t.Errorf("%s limiter should have an error message", name)
		}
		if l.Remaining("x") <= 0 {
			t.Errorf("%s limiter should start with tokens", name)
		}
		l.Stop()
	}
}

func TestNew_DefaultErrorMessage(t *testing.T) {
	l := New(Config{TokensPerMinute: 1})
	defer l.Stop()
	if l.ErrorMessage() == "" {
		t.Error("expected a default error message")
	}
}

// --- Middleware ---

func TestMiddleware(t *testing.T) {
	l := New(Config{TokensPerMinute: 2, MaxTokens: 2, ErrorMessage: "slow down"})
	defer l.Stop()

	h := l.Middleware(func(r *http.Request) string { return r.RemoteAddr })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/status", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1:1234"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, rec.Code)
		}
	}

	rec := do("10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Error != "slow down" {
		t.Errorf("unexpected body %+v", body)
	}

	if rec := do("10.0.0.2:1234"); rec.Code != http.StatusNoContent {
		t.Errorf("other client should not be limited, got %d", rec.Code)
	}
}
