package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout    time.Duration
	SessionCookieName string
	SessionTTL        time.Duration
}

// HealthFunc reports the state of the catalog circuit.
type HealthFunc func() string

func NewRouter(cfg RouterConfig, bags *BagHandler, catalogState HealthFunc) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		state := catalogState()
		if state == "open" {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "catalog": state})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "catalog": state})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.SessionCookieName, cfg.SessionTTL))

		r.Get("/bag", bags.GetBag)
		r.Delete("/bag", bags.ClearBag)
		r.Post("/bag/add", bags.AddItem)
		r.Post("/bag/update", bags.UpdateItem)
		r.Post("/bag/delete", bags.DeleteItem)
		r.Post("/bag/delivery", bags.SelectDelivery)
		r.Get("/bag/quote", bags.QuoteDelivery)
		r.Get("/delivery-options", bags.ListDeliveryOptions)
	})

	return otelhttp.NewHandler(r, "bag-service")
}
