package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"pulse/app/internal/ratelimit"
)

// Auth guards incident writes with HTTP basic auth against a bcrypt hash.
// With no hash configured every request is let through.
type Auth struct {
	User     string
	Hash     []byte
	failures *ratelimit.Limiter
	clientIP func(*http.Request) string
}

// NewAuth creates a new Auth instance. failures may be nil to disable
// lockout after repeated bad credentials.
func NewAuth(user string, hash []byte, failures *ratelimit.Limiter, clientIP func(*http.Request) string) *Auth {
	if clientIP == nil {
		clientIP = func(r *http.Request) string { return r.RemoteAddr }
	}
	return &Auth{
		User:     user,
		Hash:     hash,
		failures: failures,
		clientIP: clientIP,
	}
}

// Enabled reports whether credentials are required
func (a *Auth) Enabled() bool {
	return len(a.Hash) > 0
}

// CheckCredentials compares user and password against the configured values
func (a *Auth) CheckCredentials(user, pass string) bool {
	if user == "" || pass == "" || len(a.Hash) == 0 {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.User)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.Hash, []byte(pass)) == nil
	return userOK && passOK
}

// RequireAuth is middleware that requires valid basic auth credentials
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ip := a.clientIP(r)
		if a.failures != nil && a.failures.Exhausted(ip) {
			a.failures.Reject(w, ip)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !a.CheckCredentials(user, pass) {
			if a.failures != nil {
				a.failures.Allow(ip)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="pulse", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if a.failures != nil {
			a.failures.Reset(ip)
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
