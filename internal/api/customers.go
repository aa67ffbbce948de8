package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

var allowedCustomerTiers = map[string]struct{}{
	models.TierRegular: {},
	models.TierSilver:  {},
	models.TierGold:    {},
	models.TierPremium: {},
	models.TierVIP:     {},
}

// CustomerHandler manages customer endpoints.
type CustomerHandler struct {
	Store *store.CustomerStore
}

type createCustomerRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
	Tier  string  `json:"tier,omitempty"`
}

type customersResponse struct {
	Customers []*store.Customer `json:"customers"`
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	customers, err := h.Store.List(r.Context(), limit)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, customersResponse{Customers: customers})
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	tier := req.Tier
	if tier == "" {
		tier = models.TierRegular
	}
	if _, ok := allowedCustomerTiers[tier]; !ok {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid tier"})
		return
	}

	customer, err := h.Store.Create(r.Context(), store.CreateCustomerInput{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
		Tier:  tier,
	})
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuidRegex.MatchString(id) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid customer id"})
		return
	}

	customer, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, customer)
}
