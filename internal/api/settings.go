package api

import (
	"net/http"

	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

var allowedScoringStrategies = map[string]struct{}{
	models.ScoringWaitTime:          {},
	models.ScoringCustomerTier:      {},
	models.ScoringServiceComplexity: {},
	models.ScoringRevenue:           {},
	models.ScoringCombined:          {},
}

var allowedAssignmentStrategies = map[string]struct{}{
	models.AssignLoadBalancing: {},
	models.AssignPriority:      {},
	models.AssignRoundRobin:    {},
	models.AssignSkills:        {},
}

// SettingsHandler manages per-shop engine settings.
type SettingsHandler struct {
	Store *store.SettingsStore
}

type updateSettingsRequest struct {
	ScoringStrategy    string `json:"scoring_strategy"`
	AssignmentStrategy string `json:"assignment_strategy"`
	QueuePageSize      int    `json:"queue_page_size"`
	EmployeePageSize   int    `json:"employee_page_size"`
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.Get(r.Context())
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := allowedScoringStrategies[req.ScoringStrategy]; !ok {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid scoring_strategy"})
		return
	}
	if _, ok := allowedAssignmentStrategies[req.AssignmentStrategy]; !ok {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid assignment_strategy"})
		return
	}
	if req.QueuePageSize <= 0 || req.EmployeePageSize <= 0 {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "page sizes must be positive"})
		return
	}

	settings, err := h.Store.Upsert(r.Context(), store.UpdateSettingsInput{
		ScoringStrategy:    req.ScoringStrategy,
		AssignmentStrategy: req.AssignmentStrategy,
		QueuePageSize:      req.QueuePageSize,
		EmployeePageSize:   req.EmployeePageSize,
	})
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, settings)
}
