package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopqueue/shop-queue/internal/metrics"
	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
	"github.com/shopqueue/shop-queue/internal/ws"
)

var allowedQueueStatuses = map[string]struct{}{
	models.QueueStatusWaiting:    {},
	models.QueueStatusConfirmed:  {},
	models.QueueStatusInProgress: {},
	models.QueueStatusServing:    {},
	models.QueueStatusCompleted:  {},
	models.QueueStatusCancelled:  {},
}

// QueueHandler manages queue endpoints.
type QueueHandler struct {
	Store *store.QueueStore
	Hub   *ws.Hub
}

type serviceLineRequest struct {
	ServiceName string  `json:"service_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int32   `json:"quantity"`
}

type createQueueRequest struct {
	CustomerID *string              `json:"customer_id,omitempty"`
	Services   []serviceLineRequest `json:"services,omitempty"`
}

type queueStatusRequest struct {
	Status string `json:"status"`
}

type queuesResponse struct {
	Queues []*store.Queue `json:"queues"`
}

type queueDetailResponse struct {
	Queue    *store.Queue `json:"queue"`
	Position int          `json:"position"`
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.QueueFilter{Limit: 100}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		if _, ok := allowedQueueStatuses[status]; !ok {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
			return
		}
		filter.Status = status
	}
	if employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id")); employeeID != "" {
		if !uuidRegex.MatchString(employeeID) {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid employee_id"})
			return
		}
		filter.EmployeeID = &employeeID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid offset"})
			return
		}
		filter.Offset = parsed
	}

	queues, err := h.Store.List(r.Context(), filter)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, queuesResponse{Queues: queues})
}

func (h *QueueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CustomerID != nil && !uuidRegex.MatchString(*req.CustomerID) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid customer_id"})
		return
	}

	input := store.CreateQueueInput{CustomerID: req.CustomerID}
	for _, line := range req.Services {
		name := strings.TrimSpace(line.ServiceName)
		if name == "" {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "service_name is required"})
			return
		}
		if line.UnitPrice < 0 || line.Quantity <= 0 {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid service line"})
			return
		}
		input.Services = append(input.Services, store.ServiceLineInput{
			ServiceName: name,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		})
	}

	queue, err := h.Store.Create(r.Context(), input)
	if err != nil {
		sendStoreError(w, err)
		return
	}

	metrics.QueuesJoined.Inc()
	if h.Hub != nil {
		h.Hub.BroadcastEvent(middleware.ShopFromContext(r.Context()), ws.MessageQueueCreated, queue)
	}
	sendJSON(w, http.StatusCreated, queue)
}

func (h *QueueHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Store.Summary(r.Context())
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, summary)
}

func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(id) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid queue id"})
		return
	}

	queue, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		sendStoreError(w, err)
		return
	}

	response := queueDetailResponse{Queue: queue}
	if queue.Status == models.QueueStatusWaiting {
		position, err := h.Store.Position(r.Context(), id)
		if err != nil {
			sendStoreError(w, err)
			return
		}
		response.Position = position
	}
	sendJSON(w, http.StatusOK, response)
}

func (h *QueueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(id) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid queue id"})
		return
	}

	var req queueStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := allowedQueueStatuses[req.Status]; !ok {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status"})
		return
	}

	current, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	if !models.CanTransitionQueue(current.Status, req.Status) {
		sendJSON(w, http.StatusConflict, errorResponse{
			Error: "cannot transition from " + current.Status + " to " + req.Status,
		})
		return
	}

	queue, err := h.Store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		sendStoreError(w, err)
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastEvent(middleware.ShopFromContext(r.Context()), ws.MessageQueueStatusChanged, queue)
	}
	sendJSON(w, http.StatusOK, queue)
}
