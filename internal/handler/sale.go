package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pos-settlement/internal/domain/auth"
	"github.com/xenking/pos-settlement/internal/domain/sale"
	"github.com/xenking/pos-settlement/internal/idempotency"
	"github.com/xenking/pos-settlement/pkg/httpmiddleware"
)

// HeaderIdempotencyKey lets clients retry a submission safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// CreateSale handles POST /api/sales.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large", "body_too_large")
		return
	}
	req, err := decodeCreateSale(body)
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "validation_error")
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		status, resp := h.createSale(ctx, actor, req)
		write(w, status, resp)
		return
	}

	key = idempotency.Key(actor.CompanyID, key)
	fingerprint := idempotency.Fingerprint(body)
	stored, err := h.idem.Begin(ctx, key)
	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		httpmiddleware.WriteError(w, http.StatusConflict, err.Error(), "idempotency_in_progress")
		return
	case err != nil:
		zctx.From(ctx).Error("Idempotency begin failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error", "internal_error")
		return
	case stored != nil && !stored.Matches(fingerprint):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity,
			"idempotency key was already used with a different request body", "idempotency_key_reused")
		return
	case stored != nil:
		w.Header().Set("Idempotent-Replayed", "true")
		write(w, stored.Status, stored.Body)
		return
	}

	status, resp := h.createSale(ctx, actor, req)
	// The key outlives the request, so detach cancellation before storing.
	bg := context.WithoutCancel(ctx)
	if status == http.StatusCreated {
		err = h.idem.Complete(bg, key, idempotency.Response{Status: status, Body: resp, Fingerprint: fingerprint})
	} else {
		err = h.idem.Release(bg, key)
	}
	if err != nil {
		zctx.From(ctx).Error("Idempotency update failed", zap.Error(err))
	}
	write(w, status, resp)
}

// createSale runs the sale and renders its outcome as a status and a body.
func (h *Handler) createSale(ctx context.Context, actor auth.Actor, req sale.CreateRequest) (int, []byte) {
	res, err := h.sales.CreateSale(ctx, actor, req)
	switch {
	case err == nil:
		return http.StatusCreated, encodeResult(res)
	case sale.IsInvalid(err):
		return http.StatusUnprocessableEntity, httpmiddleware.ErrorBody(err.Error(), "validation_error")
	case sale.IsRejection(err):
		return http.StatusBadRequest, httpmiddleware.ErrorBody(err.Error(), sale.Reason(err))
	default:
		zctx.From(ctx).Error("Create sale failed", zap.Error(err))
		return http.StatusInternalServerError, httpmiddleware.ErrorBody("internal error", "internal_error")
	}
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
