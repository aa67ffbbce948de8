package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

var allowedEmployeeStatuses = map[string]struct{}{
	models.EmployeeStatusActive:   {},
	models.EmployeeStatusInactive: {},
	models.EmployeeStatusOnLeave:  {},
}

// EmployeeHandler manages roster endpoints.
type EmployeeHandler struct {
	Store *store.EmployeeStore
}

type createEmployeeRequest struct {
	Name         string   `json:"name"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	Skills       []string `json:"skills,omitempty"`
}

type employeeStatusRequest struct {
	Status string `json:"status"`
}

type employeesResponse struct {
	Employees []*store.Employee `json:"employees"`
}

func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.EmployeeFilter{}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		if _, ok := allowedEmployeeStatuses[status]; !ok {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return
		}
		filter.Status = status
	}
	if departmentID := strings.TrimSpace(r.URL.Query().Get("department_id")); departmentID != "" {
		if !uuidRegex.MatchString(departmentID) {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid department_id"})
			return
		}
		filter.DepartmentID = &departmentID
	}

	employees, err := h.Store.List(r.Context(), filter)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, employeesResponse{Employees: employees})
}

func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	status := req.Status
	if status == "" {
		status = models.EmployeeStatusActive
	}
	if _, ok := allowedEmployeeStatuses[status]; !ok {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
		return
	}
	if req.DepartmentID != nil && !uuidRegex.MatchString(*req.DepartmentID) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid department_id"})
		return
	}

	employee, err := h.Store.Create(r.Context(), store.CreateEmployeeInput{
		Name:         req.Name,
		DepartmentID: req.DepartmentID,
		Status:       status,
		Skills:       req.Skills,
	})
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, employee)
}

func (h *EmployeeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(id) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid employee id"})
		return
	}

	var req employeeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := allowedEmployeeStatuses[req.Status]; !ok {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
		return
	}

	employee, err := h.Store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, employee)
}
