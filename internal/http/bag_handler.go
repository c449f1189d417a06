package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/bag-service/internal/domain"
	"github.com/fjod/go_cart/bag-service/internal/service"
)

type BagService interface {
	Add(ctx context.Context, sessionID, productID string, qty int) error
	Update(ctx context.Context, sessionID, productID string, qty int) error
	Delete(ctx context.Context, sessionID, productID string) error
	Clear(ctx context.Context, sessionID string) error
	Items(ctx context.Context, sessionID string) (*service.Listing, error)
	Summary(ctx context.Context, sessionID string) (*service.Summary, error)
	Quote(ctx context.Context, sessionID, deliveryID string) (*service.Summary, error)
	SelectDelivery(ctx context.Context, sessionID, deliveryID string) error
	DeliveryOptions(ctx context.Context) ([]domain.DeliveryOption, error)
}

type BagHandler struct {
	bags        BagService
	timeout     time.Duration
	maxBodySize int64
}

func NewBagHandler(bags BagService, timeout time.Duration, maxBodySize int64) *BagHandler {
	return &BagHandler{
		bags:        bags,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// TotalsDTO is the body every bag mutation answers with. Amounts are decimal
// strings with two places.
type TotalsDTO struct {
	Qty      int    `json:"qty"`
	Subtotal string `json:"subtotal"`
	Delivery string `json:"delivery"`
	Total    string `json:"total"`
}

type LineDTO struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type BagDTO struct {
	Items   []LineDTO `json:"items"`
	Skipped int       `json:"skipped"`
	TotalsDTO
}

type DeliveryOptionDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Method    string `json:"method"`
	Timeframe string `json:"timeframe"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *BagHandler) GetBag(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	listing, err := h.bags.Items(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	summary, err := h.bags.Summary(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := BagDTO{
		Items:     make([]LineDTO, 0, len(listing.Lines)),
		Skipped:   listing.Skipped,
		TotalsDTO: totalsFromSummary(summary),
	}
	for _, l := range listing.Lines {
		resp.Items = append(resp.Items, LineDTO{
			ProductID: l.ProductID,
			Title:     l.Title,
			ImageURL:  l.ImageURL,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *BagHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, true, h.bags.Add)
}

func (h *BagHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, true, h.bags.Update)
}

func (h *BagHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	h.mutateLine(w, r, false, func(ctx context.Context, sessionID, productID string, _ int) error {
		return h.bags.Delete(ctx, sessionID, productID)
	})
}

func (h *BagHandler) mutateLine(w http.ResponseWriter, r *http.Request, withQty bool,
	apply func(ctx context.Context, sessionID, productID string, qty int) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	productID := strings.TrimSpace(r.PostForm.Get("product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var qty int
	if withQty {
		var err error
		qty, err = strconv.Atoi(strings.TrimSpace(r.PostForm.Get("quantity")))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be an integer")
			return
		}
	}

	if err := apply(ctx, sessionID, productID, qty); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.respondTotals(ctx, w, r, sessionID)
}

func (h *BagHandler) ClearBag(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	if err := h.bags.Clear(ctx, sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BagHandler) ListDeliveryOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	options, err := h.bags.DeliveryOptions(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]DeliveryOptionDTO, 0, len(options))
	for _, o := range options {
		resp = append(resp, DeliveryOptionDTO{
			ID:        o.ID,
			Name:      o.Name,
			Price:     o.Price.StringFixed(2),
			Method:    o.Method,
			Timeframe: o.Timeframe,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *BagHandler) SelectDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	deliveryID := strings.TrimSpace(r.PostForm.Get("delivery_id"))
	if deliveryID == "" {
		respondError(w, http.StatusBadRequest, "invalid_delivery_id", "delivery_id is required")
		return
	}

	if err := h.bags.SelectDelivery(ctx, sessionID, deliveryID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.respondTotals(ctx, w, r, sessionID)
}

// QuoteDelivery prices the bag with the delivery_id query parameter without
// selecting it.
func (h *BagHandler) QuoteDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	deliveryID := strings.TrimSpace(r.URL.Query().Get("delivery_id"))
	if deliveryID == "" {
		respondError(w, http.StatusBadRequest, "invalid_delivery_id", "delivery_id is required")
		return
	}

	summary, err := h.bags.Quote(ctx, sessionID, deliveryID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, totalsFromSummary(summary))
}

func (h *BagHandler) respondTotals(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionID string) {
	summary, err := h.bags.Summary(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, totalsFromSummary(summary))
}

func (h *BagHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return false
	}
	return true
}

func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := SessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session on request")
		return "", false
	}
	return sessionID, true
}

func totalsFromSummary(s *service.Summary) TotalsDTO {
	return TotalsDTO{
		Qty:      s.ItemCount,
		Subtotal: s.Subtotal.StringFixed(2),
		Delivery: s.Delivery.StringFixed(2),
		Total:    s.Total.StringFixed(2),
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, domain.ErrProductNotFound):
		httpStatus = http.StatusNotFound
		code = "product_not_found"
	case errors.Is(err, domain.ErrDeliveryOptionNotFound):
		httpStatus = http.StatusNotFound
		code = "delivery_option_not_found"
	case errors.Is(err, domain.ErrSessionUnavailable):
		httpStatus = http.StatusServiceUnavailable
		code = "session_unavailable"
	case errors.Is(err, domain.ErrCatalogUnavailable):
		httpStatus = http.StatusServiceUnavailable
		code = "catalog_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		slog.ErrorContext(r.Context(), "unhandled bag error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, httpStatus, ErrorResponse{
		Error:   http.StatusText(httpStatus),
		Code:    code,
		Details: err.Error(),
	})
}
