// Package api exposes the engine's operator surface over HTTP: sync job
// types, jobs, enqueue and cancel.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/engine"
)

// API wires the HTTP handlers for the sync job engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// New creates an API from an Engine.
func New(eng *engine.Engine, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{eng: eng, logger: logger}
}

// Handler returns a router with every route registered.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes on an existing router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/types", func(r chi.Router) {
			r.Post("/", a.createType)
			r.Get("/", a.listTypes)
			r.Get("/{name}", a.getType)
			r.Put("/{name}", a.updateType)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", a.enqueueJob)
			r.Get("/", a.listJobs)
			r.Get("/counts", a.jobCounts)
			r.Get("/{jobID}", a.getJob)
			r.Post("/{jobID}/cancel", a.cancelJob)
		})
		r.Get("/queues", a.queueStats)
	})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeEngineErr maps engine sentinel errors to HTTP statuses.
func (a *API) writeEngineErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	// An unknown type named in a request body wraps ErrTypeNotFound in
	// ErrConfiguration and is the caller's mistake, not a missing resource.
	case errors.Is(err, docsync.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, docsync.ErrJobNotFound), errors.Is(err, docsync.ErrTypeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, docsync.ErrTypeAlreadyExists), errors.Is(err, docsync.ErrJobAlreadyExists),
		errors.Is(err, docsync.ErrNotCancelable), errors.Is(err, docsync.ErrStatusConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("api request failed", slog.String("error", err.Error()))
	}
	writeErr(w, status, err)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
