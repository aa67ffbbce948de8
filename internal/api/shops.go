package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shopqueue/shop-queue/internal/models"
	"github.com/shopqueue/shop-queue/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ShopHandler manages shop signup and lookup. These endpoints sit outside the
// shop-scoped route group.
type ShopHandler struct {
	Store *store.ShopStore
}

type createShopRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Tier string `json:"tier,omitempty"`
}

func (h *ShopHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createShopRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if req.Name == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}
	if !slugPattern.MatchString(req.Slug) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid slug"})
		return
	}
	tier := req.Tier
	if tier == "" {
		tier = models.ShopTierFree
	}
	switch tier {
	case models.ShopTierFree, models.ShopTierPro, models.ShopTierEnterprise:
	default:
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid tier"})
		return
	}

	shop, err := h.Store.Create(r.Context(), req.Name, req.Slug, tier)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, shop)
}

// Get resolves a shop by id or slug.
func (h *ShopHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")

	var (
		shop *store.Shop
		err  error
	)
	if uuidRegex.MatchString(key) {
		shop, err = h.Store.GetByID(r.Context(), key)
	} else if slugPattern.MatchString(key) {
		shop, err = h.Store.GetBySlug(r.Context(), key)
	} else {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid shop id"})
		return
	}
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, shop)
}
