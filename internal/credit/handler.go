package credit

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/crediario-erp/crediario/internal/inventory"
	"github.com/crediario-erp/crediario/internal/platform/httpx"
	"github.com/crediario-erp/crediario/internal/shared"
)

// Handler wires HTTP endpoints for the credit ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	preview  singleflight.Group
}

// NewHandler constructs the credit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/convert", h.handleConvertOrder)
	r.Post("/sales", h.handleCreateDirectSale)
	r.Get("/sales/{id}", h.handleGetSale)
	r.Post("/sales/{id}/restructure", h.handleRestructure)
	r.Post("/sales/{id}/cancel", h.handleCancelSale)
	r.Post("/installments/{id}/payments", h.handleApplyPayment)
	r.Get("/interest/preview", h.handlePreviewInterest)
	r.Post("/interest/recalculate", h.handleRecalculateInterest)
}

func (h *Handler) handleConvertOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	var req convertOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	opts := conversionOptions(req)
	opts.IdempotencyKey = r.Header.Get("Idempotency-Key")
	sale, err := h.service.ConvertOrderToSale(r.Context(), orderID, opts)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleCreateDirectSale(w http.ResponseWriter, r *http.Request) {
	var req directSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lines := make([]DirectSaleLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, DirectSaleLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	opts := conversionOptions(req.convertOrderRequest)
	opts.IdempotencyKey = r.Header.Get("Idempotency-Key")
	sale, err := h.service.CreateDirectSale(r.Context(), DirectSaleInput{
		ClientID:   req.ClientID,
		Lines:      lines,
		Discount:   req.Discount,
		TaxPercent: req.TaxPercent,
		Options:    opts,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleGetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.GetSale(r.Context(), saleID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleApplyPayment(w http.ResponseWriter, r *http.Request) {
	installmentID, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment id")
		return
	}
	var req applyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	interestFirst := true
	if req.InterestFirst != nil {
		interestFirst = *req.InterestFirst
	}
	result, err := h.service.ApplyPayment(r.Context(), installmentID, req.Amount, PaymentOptions{
		Reference:      req.Reference,
		InterestFirst:  interestFirst,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		ReceivedBy:     req.ReceivedBy,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, applyPaymentResponse{
		Installment:   result.Installment,
		Payment:       result.Payment,
		SaleFullyPaid: result.SaleFullyPaid,
	})
}

func (h *Handler) handlePreviewInterest(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	// Concurrent previews for the same day collapse into one computation.
	// The shared call is detached from the first caller's context so its
	// cancellation cannot fail every coalesced waiter.
	key := asOf.Format("2006-01-02")
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := h.preview.Do(key, func() (any, error) {
		return h.service.PreviewInterest(ctx, asOf)
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) handleRecalculateInterest(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	result, err := h.service.RecalculateOverdueInterest(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRestructure(w http.ResponseWriter, r *http.Request) {
	saleID, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req restructureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	record, err := h.service.Restructure(r.Context(), saleID, RestructureInput{
		Periodicity:       Periodicity(req.Periodicity),
		InstallmentAmount: req.InstallmentAmount,
		InstallmentCount:  req.InstallmentCount,
		NextDueDate:       req.NextDueDate,
		Discount:          req.Discount,
		InterestForgiven:  req.InterestForgiven,
		Reason:            req.Reason,
		AuthorizedBy:      req.AuthorizedBy,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req cancelSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.CancelSale(r.Context(), saleID, req.ActorID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var overpayment *OverpaymentError
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.As(err, &overpayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Overpayment", overpayment.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	default:
		h.logger.ErrorContext(r.Context(), "credit request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func conversionOptions(req convertOrderRequest) ConversionOptions {
	return ConversionOptions{
		InitialPayment:    req.InitialPayment,
		Periodicity:       Periodicity(req.Periodicity),
		InstallmentAmount: req.InstallmentAmount,
		GraceDays:         req.GraceDays,
		DailyRatePct:      req.DailyRatePct,
		ApplyInventory:    req.ApplyInventory,
		Notes:             req.Notes,
		CreatedBy:         req.CreatedBy,
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
