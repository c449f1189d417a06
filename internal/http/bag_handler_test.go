package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/bag-service/internal/domain"
	"github.com/fjod/go_cart/bag-service/internal/service"
	"github.com/shopspring/decimal"
)

type serviceMock struct {
	m        sync.Mutex
	err      error
	listing  *service.Listing
	summary  *service.Summary
	calls    []string
	options  []domain.DeliveryOption
	quoteErr error
}

func (s *serviceMock) record(call string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, call)
	return s.err
}

func (s *serviceMock) Add(_ context.Context, sessionID, productID string, qty int) error {
	return s.record(fmt.Sprintf("add %s %s %d", sessionID, productID, qty))
}

func (s *serviceMock) Update(_ context.Context, sessionID, productID string, qty int) error {
	return s.record(fmt.Sprintf("update %s %s %d", sessionID, productID, qty))
}

func (s *serviceMock) Delete(_ context.Context, sessionID, productID string) error {
	return s.record(fmt.Sprintf("delete %s %s", sessionID, productID))
}

func (s *serviceMock) Clear(_ context.Context, sessionID string) error {
	return s.record("clear " + sessionID)
}

func (s *serviceMock) Items(context.Context, string) (*service.Listing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.listing, nil
}

func (s *serviceMock) Summary(context.Context, string) (*service.Summary, error) {
	return s.summary, nil
}

func (s *serviceMock) Quote(_ context.Context, _, deliveryID string) (*service.Summary, error) {
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	q := *s.summary
	q.Delivery = decimal.RequireFromString("4.99")
	q.Total = q.Subtotal.Add(q.Delivery)
	return &q, nil
}

func (s *serviceMock) SelectDelivery(_ context.Context, sessionID, deliveryID string) error {
	return s.record("select " + sessionID + " " + deliveryID)
}

func (s *serviceMock) DeliveryOptions(context.Context) ([]domain.DeliveryOption, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.options, nil
}

func newServiceMock() *serviceMock {
	return &serviceMock{
		summary: &service.Summary{
			ItemCount: 3,
			Subtotal:  decimal.RequireFromString("25.5"),
			Delivery:  decimal.Zero,
			Total:     decimal.RequireFromString("25.5"),
		},
		listing: &service.Listing{
			Lines: []service.Line{{
				ProductID: "1",
				Title:     "Linen Shirt",
				ImageURL:  "/media/images/linen-shirt.png",
				UnitPrice: decimal.RequireFromString("10"),
				Quantity:  2,
				LineTotal: decimal.RequireFromString("20"),
			}},
			Skipped: 1,
		},
	}
}

func formRequest(method, target string, form url.Values) *http.Request {
	request := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return request.WithContext(ContextWithSessionID(request.Context(), "sess-1"))
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return response
}

func TestAddItem_Success(t *testing.T) {
	mock := newServiceMock()
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.AddItem(recorder, formRequest("POST", "/api/v1/bag/add", url.Values{"product_id": {"1"}, "quantity": {"2"}}))

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response TotalsDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Qty != 3 || response.Subtotal != "25.50" || response.Total != "25.50" || response.Delivery != "0.00" {
		t.Errorf("Unexpected totals: %+v", response)
	}
	if len(mock.calls) != 1 || mock.calls[0] != "add sess-1 1 2" {
		t.Errorf("Unexpected service calls: %v", mock.calls)
	}
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
	}{
		{"missing", ""},
		{"text", "two"},
		{"float", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newServiceMock()
			handler := NewBagHandler(mock, 5*time.Second, 1<<20)
			recorder := httptest.NewRecorder()

			handler.AddItem(recorder, formRequest("POST", "/", url.Values{"product_id": {"1"}, "quantity": {tt.quantity}}))

			if recorder.Code != http.StatusBadRequest {
				t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
			}
			if response := decodeError(t, recorder); response.Code != "invalid_quantity" {
				t.Errorf("Expected error code 'invalid_quantity', got '%s'", response.Code)
			}
			if len(mock.calls) != 0 {
				t.Errorf("Expected no service calls, got %v", mock.calls)
			}
		})
	}
}

func TestAddItem_MissingProductID(t *testing.T) {
	handler := NewBagHandler(newServiceMock(), 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.AddItem(recorder, formRequest("POST", "/", url.Values{"quantity": {"1"}}))

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	if response := decodeError(t, recorder); response.Code != "invalid_product_id" {
		t.Errorf("Expected error code 'invalid_product_id', got '%s'", response.Code)
	}
}

func TestAddItem_BodyTooLarge(t *testing.T) {
	handler := NewBagHandler(newServiceMock(), 5*time.Second, 16)
	recorder := httptest.NewRecorder()

	handler.AddItem(recorder, formRequest("POST", "/", url.Values{"product_id": {strings.Repeat("x", 64)}, "quantity": {"1"}}))

	if recorder.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status code %d, got %d", http.StatusRequestEntityTooLarge, recorder.Code)
	}
}

func TestAddItem_NoSession(t *testing.T) {
	handler := NewBagHandler(newServiceMock(), 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("POST", "/", strings.NewReader("product_id=1&quantity=1"))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	handler.AddItem(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	if response := decodeError(t, recorder); response.Code != "missing_session" {
		t.Errorf("Expected error code 'missing_session', got '%s'", response.Code)
	}
}

func TestServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"product not found", fmt.Errorf("%w: 42", domain.ErrProductNotFound), http.StatusNotFound, "product_not_found"},
		{"invalid quantity", domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
		{"session unavailable", fmt.Errorf("%w: dial tcp", domain.ErrSessionUnavailable), http.StatusServiceUnavailable, "session_unavailable"},
		{"catalog unavailable", domain.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog_unavailable"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newServiceMock()
			mock.err = tt.err
			handler := NewBagHandler(mock, 5*time.Second, 1<<20)
			recorder := httptest.NewRecorder()

			handler.AddItem(recorder, formRequest("POST", "/", url.Values{"product_id": {"42"}, "quantity": {"1"}}))

			if recorder.Code != tt.status {
				t.Errorf("Expected status code %d, got %d", tt.status, recorder.Code)
			}
			if response := decodeError(t, recorder); response.Code != tt.code {
				t.Errorf("Expected error code '%s', got '%s'", tt.code, response.Code)
			}
		})
	}
}

func TestUpdateItem_Success(t *testing.T) {
	mock := newServiceMock()
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.UpdateItem(recorder, formRequest("POST", "/", url.Values{"product_id": {"1"}, "quantity": {"5"}}))

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	if len(mock.calls) != 1 || mock.calls[0] != "update sess-1 1 5" {
		t.Errorf("Unexpected service calls: %v", mock.calls)
	}
}

func TestDeleteItem_IgnoresQuantity(t *testing.T) {
	mock := newServiceMock()
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.DeleteItem(recorder, formRequest("POST", "/", url.Values{"product_id": {"2"}}))

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	if len(mock.calls) != 1 || mock.calls[0] != "delete sess-1 2" {
		t.Errorf("Unexpected service calls: %v", mock.calls)
	}
}

func TestClearBag(t *testing.T) {
	mock := newServiceMock()
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.ClearBag(recorder, formRequest("DELETE", "/", nil))

	if recorder.Code != http.StatusNoContent {
		t.Errorf("Expected status code %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if len(mock.calls) != 1 || mock.calls[0] != "clear sess-1" {
		t.Errorf("Unexpected service calls: %v", mock.calls)
	}
}

func TestGetBag_Success(t *testing.T) {
	handler := NewBagHandler(newServiceMock(), 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.GetBag(recorder, formRequest("GET", "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}

	var response BagDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(response.Items))
	}
	item := response.Items[0]
	if item.Title != "Linen Shirt" || item.UnitPrice != "10.00" || item.LineTotal != "20.00" || item.Quantity != 2 {
		t.Errorf("Unexpected item: %+v", item)
	}
	if response.Skipped != 1 {
		t.Errorf("Expected 1 skipped line, got %d", response.Skipped)
	}
	if response.Qty != 3 || response.Subtotal != "25.50" {
		t.Errorf("Unexpected totals: %+v", response.TotalsDTO)
	}
}

func TestGetBag_ServiceError(t *testing.T) {
	mock := newServiceMock()
	mock.err = domain.ErrCatalogUnavailable
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.GetBag(recorder, formRequest("GET", "/", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, recorder.Code)
	}
}

func TestSelectDelivery(t *testing.T) {
	mock := newServiceMock()
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)

	recorder := httptest.NewRecorder()
	handler.SelectDelivery(recorder, formRequest("POST", "/", url.Values{"delivery_id": {"2"}}))
	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	if len(mock.calls) != 1 || mock.calls[0] != "select sess-1 2" {
		t.Errorf("Unexpected service calls: %v", mock.calls)
	}

	recorder = httptest.NewRecorder()
	handler.SelectDelivery(recorder, formRequest("POST", "/", url.Values{}))
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestQuoteDelivery(t *testing.T) {
	mock := newServiceMock()
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)

	recorder := httptest.NewRecorder()
	handler.QuoteDelivery(recorder, formRequest("GET", "/api/v1/bag/quote?delivery_id=1", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("Expected status code %d, got %d", http.StatusOK, recorder.Code)
	}
	var response TotalsDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Delivery != "4.99" || response.Total != "30.49" {
		t.Errorf("Unexpected quote: %+v", response)
	}

	mock.quoteErr = domain.ErrDeliveryOptionNotFound
	recorder = httptest.NewRecorder()
	handler.QuoteDelivery(recorder, formRequest("GET", "/api/v1/bag/quote?delivery_id=9", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestListDeliveryOptions(t *testing.T) {
	mock := newServiceMock()
	mock.options = []domain.DeliveryOption{
		{ID: "1", Name: "Standard", Price: decimal.RequireFromString("4.99"), Method: "HD", Timeframe: "3-5 working days"},
		{ID: "3", Name: "Click and Collect", Price: decimal.Zero, Method: "IP"},
	}
	handler := NewBagHandler(mock, 5*time.Second, 1<<20)
	recorder := httptest.NewRecorder()

	handler.ListDeliveryOptions(recorder, httptest.NewRequest("GET", "/", nil))

	var response []DeliveryOptionDTO
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response) != 2 || response[0].Price != "4.99" || response[1].Price != "0.00" {
		t.Errorf("Unexpected options: %+v", response)
	}
}
