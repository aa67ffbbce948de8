package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopqueue/shop-queue/internal/store"
)

// DepartmentHandler manages department endpoints.
type DepartmentHandler struct {
	Store *store.DepartmentStore
}

type createDepartmentRequest struct {
	Name string `json:"name"`
}

type departmentsResponse struct {
	Departments []*store.Department `json:"departments"`
}

func (h *DepartmentHandler) List(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Store.List(r.Context())
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, departmentsResponse{Departments: departments})
}

func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDepartmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	department, err := h.Store.Create(r.Context(), req.Name)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, department)
}

func (h *DepartmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(id) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid department id"})
		return
	}

	department, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, department)
}

func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(id) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid department id"})
		return
	}

	if err := h.Store.Delete(r.Context(), id); err != nil {
		sendStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
