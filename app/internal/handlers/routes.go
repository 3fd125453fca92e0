package handlers

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pulse/app/internal/security"
)

// Routes configures all HTTP routes and middlewares
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(recoverer)
	r.Use(security.SecureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.HandleHealth)

	r.Route("/status", func(r chi.Router) {
		r.With(middleware.Compress(5)).Get("/", h.HandleGetStatus)
		r.Group(func(r chi.Router) {
			if h.Writes != nil {
				r.Use(h.Writes.Middleware(h.clientIP))
			}
			if h.Auth != nil {
				r.Use(h.Auth.RequireAuth)
			}
			r.Post("/", h.HandlePostStatus)
		})
		if h.Hub != nil {
			r.Get("/live", h.Hub.HandleConnect)
		}
	})

	return r
}

// HandleHealth reports process liveness and the newest recorded sample
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"ok":      true,
		"samples": h.Log.Len(),
	}
	if s, ok := h.Log.Latest(); ok {
		out["lastSample"] = s
	}
	writeJSON(w, http.StatusOK, out)
}

// recoverer turns a panic into the standard JSON error envelope
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("panic serving %s %s [%s]: %v\n%s", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), rec, debug.Stack())
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
