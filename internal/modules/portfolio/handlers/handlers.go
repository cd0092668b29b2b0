// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/modules/portfolio"
)

// Handler handles portfolio optimization HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleOptimize runs the full optimization pipeline for a posted request
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req portfolio.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, portfolio.KindInvalidInput, "malformed request body")
		return
	}

	resp, err := h.service.Optimize(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleValidate pre-checks a comma-separated ticker list without running
// the pipeline
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("tickers"))
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, portfolio.KindInvalidInput, "tickers query parameter is required")
		return
	}

	res, err := h.service.ValidateTickers(r.Context(), strings.Split(raw, ","))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// writeServiceError maps pipeline error kinds onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var perr *portfolio.Error
	if !errors.As(err, &perr) {
		h.log.Error().Err(err).Msg("Unclassified pipeline error")
		h.writeError(w, http.StatusInternalServerError, portfolio.KindInternal, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch perr.Kind {
	case portfolio.KindInvalidInput:
		status = http.StatusBadRequest
	case portfolio.KindInsufficientHistory:
		status = http.StatusUnprocessableEntity
	case portfolio.KindEvaluatorUnavailable:
		status = http.StatusServiceUnavailable
	case portfolio.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	h.log.Warn().Str("kind", string(perr.Kind)).Str("detail", perr.Detail).Msg("Request failed")
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":   perr.Kind,
			"detail": perr.Detail,
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind portfolio.ErrorKind, detail string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"kind":   kind,
			"detail": detail,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
