package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopqueue/shop-queue/internal/engine"
	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/store"
	"github.com/shopqueue/shop-queue/internal/ws"
)

// SettingsReader loads the per-shop engine defaults. Satisfied by
// store.SettingsStore.
type SettingsReader interface {
	Get(ctx context.Context) (*store.ShopSettings, error)
}

// EngineHandler exposes batch prioritization and auto-assignment. Shop
// settings supply the strategy defaults and the engine page sizes.
type EngineHandler struct {
	Engine   *engine.Engine
	Settings SettingsReader
	Hub      *ws.Hub
}

type prioritizeRequest struct {
	QueueIDs []string `json:"queue_ids"`
	Strategy string   `json:"strategy,omitempty"`
}

type assignRequest struct {
	Strategy       string   `json:"strategy,omitempty"`
	DepartmentID   *string  `json:"department_id,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
}

// Prioritize handles POST /api/queues/prioritize. The scoring strategy
// defaults to the shop's saved setting when the request leaves it blank.
func (h *EngineHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	shopID := middleware.ShopFromContext(r.Context())

	var req prioritizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, queueID := range req.QueueIDs {
		if !uuidRegex.MatchString(queueID) {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid queue id: " + queueID})
			return
		}
	}

	settings, err := h.Settings.Get(r.Context())
	if err != nil {
		sendStoreError(w, err)
		return
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = settings.ScoringStrategy
	}

	outcome, err := h.Engine.Prioritize(r.Context(), shopID, engine.PrioritizeInput{
		QueueIDs: req.QueueIDs,
		Strategy: strategy,
		PageSize: settings.QueuePageSize,
	})
	if err != nil {
		sendEngineError(w, err)
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastEvent(shopID, ws.MessageQueuePrioritized, outcome)
	}
	sendJSON(w, http.StatusOK, outcome)
}

// Assign handles POST /api/queues/{id}/assign.
func (h *EngineHandler) Assign(w http.ResponseWriter, r *http.Request) {
	shopID := middleware.ShopFromContext(r.Context())

	queueID := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(queueID) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid queue id"})
		return
	}

	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DepartmentID != nil && !uuidRegex.MatchString(*req.DepartmentID) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid department_id"})
		return
	}

	settings, err := h.Settings.Get(r.Context())
	if err != nil {
		sendStoreError(w, err)
		return
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = settings.AssignmentStrategy
	}

	result, err := h.Engine.AutoAssign(r.Context(), shopID, engine.AssignInput{
		QueueID:        queueID,
		Strategy:       strategy,
		DepartmentID:   req.DepartmentID,
		RequiredSkills: req.RequiredSkills,
		CandidateLimit: settings.EmployeePageSize,
	})
	if err != nil {
		sendEngineError(w, err)
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastEvent(shopID, ws.MessageQueueAssigned, result)
	}
	sendJSON(w, http.StatusOK, result)
}
