// Package api exposes the HTTP surface for the queue service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/shopqueue/shop-queue/internal/engine"
	"github.com/shopqueue/shop-queue/internal/store"
)

var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

type errorResponse struct {
	Error string `json:"error"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// sendEngineError maps engine and store failures onto HTTP statuses. Internal
// failures get logged and masked with a generic message.
func sendEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		sendJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, engine.ErrPreconditionFailed), errors.Is(err, engine.ErrNoEligibleEmployees):
		sendJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrStrategyNotImplemented):
		sendJSON(w, http.StatusNotImplemented, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNoShop):
		sendJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid shop"})
	default:
		log.Error().Err(err).Msg("request failed")
		sendJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func sendStoreError(w http.ResponseWriter, err error) {
	sendEngineError(w, err)
}
