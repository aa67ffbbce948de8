// Package middleware provides HTTP middleware for shop (tenant) isolation.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

// ContextKey is the type for context keys in this package.
type ContextKey string

// ShopIDKey is the context key for the current shop ID.
const ShopIDKey ContextKey = "shop_id"

var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// ShopFromContext retrieves the shop ID from the request context.
// Returns empty string if not set.
func ShopFromContext(ctx context.Context) string {
	if v := ctx.Value(ShopIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithShop returns a context carrying the given shop ID. Used by service
// internals and tests; request handling goes through the middleware below.
func WithShop(ctx context.Context, shopID string) context.Context {
	return context.WithValue(ctx, ShopIDKey, shopID)
}

// RequireShop ensures a valid shop ID is present on the request. It extracts
// the shop from:
// 1. X-Shop-ID header (dashboard and service-to-service calls)
// 2. shop_id query parameter (customer-facing pages, websocket upgrades)
//
// If no valid shop is found, it returns 401 Unauthorized.
func RequireShop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shopID := extractShopID(r)
		if shopID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid shop"}`))
			return
		}

		ctx := context.WithValue(r.Context(), ShopIDKey, shopID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalShop attaches the shop ID to the context when present but lets the
// request through either way. Handlers that can serve both public and
// shop-scoped traffic check the context themselves.
func OptionalShop(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shopID := extractShopID(r); shopID != "" {
			r = r.WithContext(context.WithValue(r.Context(), ShopIDKey, shopID))
		}
		next.ServeHTTP(w, r)
	})
}

func extractShopID(r *http.Request) string {
	candidates := []string{
		strings.TrimSpace(r.Header.Get("X-Shop-ID")),
		strings.TrimSpace(r.URL.Query().Get("shop_id")),
	}
	for _, candidate := range candidates {
		if candidate != "" && uuidRegex.MatchString(candidate) {
			return candidate
		}
	}
	return ""
}
