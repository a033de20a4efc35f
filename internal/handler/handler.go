// Package handler implements the HTTP API of the settlement service.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/pos-settlement/internal/domain/auth"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/idempotency"
	"github.com/xenking/pos-settlement/pkg/health"
	"github.com/xenking/pos-settlement/pkg/httpmiddleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// SaleCreator is the behaviour the handler needs from the sale service.
type SaleCreator interface {
	CreateSale(ctx context.Context, actor auth.Actor, req sale.CreateRequest) (*sale.Result, error)
}

// Handler serves the sale endpoints.
type Handler struct {
	sales SaleCreator
	idem  idempotency.Store
}

// NewHandler creates a Handler. A nil store disables idempotent replay.
func NewHandler(sales SaleCreator, idem idempotency.Store) *Handler {
	if idem == nil {
		idem = idempotency.Noop{}
	}
	return &Handler{sales: sales, idem: idem}
}

// Routes holds what NewRouter mounts besides the Handler itself.
type Routes struct {
	Security *SecurityHandler
	Health   *health.Health
	// SaleLimit throttles sale submissions; nil means unlimited.
	SaleLimit httpmiddleware.Middleware
}

// NewRouter mounts the probes and the authenticated API under /api.
func NewRouter(h *Handler, rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Get("/livez", rt.Health.LiveEndpoint)
	r.Get("/readyz", rt.Health.ReadyEndpoint)

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.Security.Authenticate)
		if rt.SaleLimit != nil {
			r.With(rt.SaleLimit).Post("/sales", h.CreateSale)
		} else {
			r.Post("/sales", h.CreateSale)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found", "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
	})
	return r
}
