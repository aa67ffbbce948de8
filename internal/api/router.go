package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/shopqueue/shop-queue/internal/engine"
	"github.com/shopqueue/shop-queue/internal/metrics"
	"github.com/shopqueue/shop-queue/internal/middleware"
	"github.com/shopqueue/shop-queue/internal/store"
	"github.com/shopqueue/shop-queue/internal/ws"
)

var startTime = time.Now()

type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// NewRouter wires stores, the decision engine, and the websocket hub into the
// full HTTP surface.
func NewRouter(db *sql.DB, engineOpts ...engine.Option) http.Handler {
	r := chi.NewRouter()

	hub := ws.NewHub()
	go hub.Run()

	queueStore := store.NewQueueStore(db)
	eng := engine.New(
		queueStore,
		queueStore,
		store.NewEmployeeStore(db),
		store.NewRotationStore(db),
		log.Logger,
		engineOpts...,
	)

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Shop-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)
	r.Get("/", handleRoot)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.With(middleware.OptionalShop).Handle("/ws", &ws.Handler{Hub: hub})

	shopHandler := &ShopHandler{Store: store.NewShopStore(db)}
	r.Post("/api/shops", shopHandler.Create)
	r.Get("/api/shops/{id}", shopHandler.Get)

	departmentHandler := &DepartmentHandler{Store: store.NewDepartmentStore(db)}
	employeeHandler := &EmployeeHandler{Store: store.NewEmployeeStore(db)}
	customerHandler := &CustomerHandler{Store: store.NewCustomerStore(db)}
	queueHandler := &QueueHandler{Store: queueStore, Hub: hub}
	engineHandler := &EngineHandler{Engine: eng, Settings: store.NewSettingsStore(db), Hub: hub}
	settingsHandler := &SettingsHandler{Store: store.NewSettingsStore(db)}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireShop)

		r.Get("/api/departments", departmentHandler.List)
		r.Post("/api/departments", departmentHandler.Create)
		r.Get("/api/departments/{id}", departmentHandler.Get)
		r.Delete("/api/departments/{id}", departmentHandler.Delete)

		r.Get("/api/employees", employeeHandler.List)
		r.Post("/api/employees", employeeHandler.Create)
		r.Patch("/api/employees/{id}/status", employeeHandler.UpdateStatus)

		r.Get("/api/customers", customerHandler.List)
		r.Post("/api/customers", customerHandler.Create)
		r.Get("/api/customers/{id}", customerHandler.Get)

		r.Get("/api/queues", queueHandler.List)
		r.Post("/api/queues", queueHandler.Create)
		r.Get("/api/queues/summary", queueHandler.Summary)
		r.Post("/api/queues/prioritize", engineHandler.Prioritize)
		r.Get("/api/queues/{id}", queueHandler.Get)
		r.Patch("/api/queues/{id}/status", queueHandler.UpdateStatus)
		r.Post("/api/queues/{id}/assign", engineHandler.Assign)

		r.Get("/api/settings", settingsHandler.Get)
		r.Put("/api/settings", settingsHandler.Update)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Version:   getVersion(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"name":    "Shop Queue",
		"docs":    "/docs",
		"health":  "/health",
		"metrics": "/metrics",
	})
}

func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}
