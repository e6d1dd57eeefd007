package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ovenworks/bakeshop/internal/app"
	"github.com/ovenworks/bakeshop/internal/domain"
)

type stubOrderService struct {
	submitFn func(ctx context.Context, in app.SubmitOrderInput) (int64, error)
	statusFn func(ctx context.Context, orderID int64) (domain.OrderStatus, error)
}

func (s *stubOrderService) SubmitOrder(ctx context.Context, in app.SubmitOrderInput) (int64, error) {
	return s.submitFn(ctx, in)
}

func (s *stubOrderService) GetStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	return s.statusFn(ctx, orderID)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestHandleSubmitOrder(t *testing.T) {
	t.Parallel()

	t.Run("creates an order", func(t *testing.T) {
		var captured app.SubmitOrderInput
		svc := &stubOrderService{
			submitFn: func(ctx context.Context, in app.SubmitOrderInput) (int64, error) {
				captured = in
				return 41, nil
			},
		}

		body := `{"customer_name":"Ada","customer_email":"ada@x.com","items":[{"product_id":3,"quantity":2}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		rec := httptest.NewRecorder()
		HandleSubmitOrder(svc)(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp submitOrderResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.OrderID != 41 {
			t.Fatalf("expected order id 41, got %d", resp.OrderID)
		}
		if captured.CustomerName != "Ada" || captured.CustomerEmail != "ada@x.com" {
			t.Fatalf("unexpected input %+v", captured)
		}
		if len(captured.Items) != 1 || captured.Items[0].ProductID != 3 || captured.Items[0].Quantity != 2 {
			t.Fatalf("unexpected items %+v", captured.Items)
		}
	})

	errCases := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid json",
			body:       `{"customer_name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidRequestBody,
		},
		{
			name:       "missing name",
			body:       `{"customer_email":"ada@x.com","items":[{"product_id":1,"quantity":1}]}`,
			serviceErr: domain.ErrCustomerNameRequired,
			wantStatus: http.StatusBadRequest,
			wantCode:   codeMissingRequiredField,
		},
		{
			name:       "missing email",
			body:       `{"customer_name":"Ada","items":[{"product_id":1,"quantity":1}]}`,
			serviceErr: domain.ErrCustomerEmailRequired,
			wantStatus: http.StatusBadRequest,
			wantCode:   codeMissingRequiredField,
		},
		{
			name:       "no items",
			body:       `{"customer_name":"Ada","customer_email":"ada@x.com","items":[]}`,
			serviceErr: domain.ErrItemsRequired,
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidItems,
		},
		{
			name:       "bad item",
			body:       `{"customer_name":"Ada","customer_email":"ada@x.com","items":[{"product_id":1,"quantity":0}]}`,
			serviceErr: domain.ErrInvalidItem,
			wantStatus: http.StatusBadRequest,
			wantCode:   codeInvalidItems,
		},
		{
			name:       "store failure",
			body:       `{"customer_name":"Ada","customer_email":"ada@x.com","items":[{"product_id":1,"quantity":1}]}`,
			serviceErr: errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   codeInternalError,
		},
	}

	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{
				submitFn: func(ctx context.Context, in app.SubmitOrderInput) (int64, error) {
					return 0, tc.serviceErr
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			HandleSubmitOrder(svc)(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, resp.Code)
			}
		})
	}

	t.Run("rejects non-POST", func(t *testing.T) {
		svc := &stubOrderService{}
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		rec := httptest.NewRecorder()
		HandleSubmitOrder(svc)(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleOrderStatus(t *testing.T) {
	t.Parallel()

	t.Run("returns the current status", func(t *testing.T) {
		svc := &stubOrderService{
			statusFn: func(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
				if orderID != 7 {
					t.Fatalf("expected order id 7, got %d", orderID)
				}
				return domain.OrderStatusProcessing, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/api/orders/7", nil)
		rec := httptest.NewRecorder()
		HandleOrderStatus(svc)(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp orderStatusResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.OrderID != 7 || resp.Status != "processing" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		svc := &stubOrderService{
			statusFn: func(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
				return "", domain.ErrOrderNotFound
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/api/orders/12345", nil)
		rec := httptest.NewRecorder()
		HandleOrderStatus(svc)(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if resp := decodeError(t, rec); resp.Code != codeOrderNotFound {
			t.Fatalf("expected code %q, got %q", codeOrderNotFound, resp.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		svc := &stubOrderService{
			statusFn: func(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
				return "", errors.New("connection refused")
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/api/orders/7", nil)
		rec := httptest.NewRecorder()
		HandleOrderStatus(svc)(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})

	badPaths := []string{
		"/api/orders/abc",
		"/api/orders/7/items",
		"/api/orders/",
		"/api/other/7",
	}
	for _, path := range badPaths {
		t.Run("bad path "+path, func(t *testing.T) {
			svc := &stubOrderService{
				statusFn: func(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
					t.Fatalf("service must not be called for %q", path)
					return "", nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			HandleOrderStatus(svc)(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404 for %q, got %d", path, rec.Code)
			}
		})
	}

	t.Run("rejects non-GET", func(t *testing.T) {
		svc := &stubOrderService{}
		req := httptest.NewRequest(http.MethodDelete, "/api/orders/7", nil)
		rec := httptest.NewRecorder()
		HandleOrderStatus(svc)(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}
