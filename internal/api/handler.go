// Package api exposes the engine over HTTP. The surface is small: one
// query endpoint, a health probe, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aisavvy/aisavvy/internal/engine"
	enginerr "github.com/aisavvy/aisavvy/internal/errors"
)

// Pinger is the liveness check the health endpoint relies on.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the HTTP API.
type Handler struct {
	engine *engine.Engine
	db     Pinger
	logger *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(eng *engine.Engine, db Pinger, logger *slog.Logger) *Handler {
	return &Handler{engine: eng, db: db, logger: logger}
}

// Routes returns the configured mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", h.handleQuery)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type failureResponse struct {
	RequestID string    `json:"request_id,omitempty"`
	SQL       string    `json:"sql,omitempty"`
	Error     errorBody `json:"error"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, failureResponse{
			Error: errorBody{Kind: "bad_request", Message: "invalid JSON body"},
		})

		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		h.writeError(w, http.StatusBadRequest, failureResponse{
			Error: errorBody{Kind: "bad_request", Message: "question is required"},
		})

		return
	}

	resp, err := h.engine.Answer(r.Context(), req)
	if err != nil {
		var failure *engine.Failure
		if !errors.As(err, &failure) {
			failure = &engine.Failure{Err: err}
		}

		kind := enginerr.KindOf(failure.Err)
		h.logger.Warn("query failed",
			slog.String("request_id", failure.RequestID),
			slog.String("kind", string(kind)))

		h.writeError(w, statusFor(kind), failureResponse{
			RequestID: failure.RequestID,
			SQL:       failure.SQL,
			Error:     errorBody{Kind: string(kind), Message: enginerr.Summary(failure.Err)},
		})

		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
			})

			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps error kinds to HTTP status codes. Correctable kinds reach
// the client only after the auto-fix loop is exhausted, so they report as
// unprocessable rather than server faults.
func statusFor(kind enginerr.Kind) int {
	switch kind {
	case enginerr.KindCatalogUnavailable, enginerr.KindInferenceUnavailable:
		return http.StatusServiceUnavailable
	case enginerr.KindInferenceTimeout, enginerr.KindExecutionTimeout:
		return http.StatusGatewayTimeout
	case enginerr.KindResultTooLarge:
		return http.StatusUnprocessableEntity
	case enginerr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, body failureResponse) {
	h.writeJSON(w, status, body)
}
