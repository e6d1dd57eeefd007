package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ovenworks/bakeshop/internal/app"
	"github.com/ovenworks/bakeshop/internal/domain"
)

// OrderSubmitter is the minimal interface needed to place an order.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, in app.SubmitOrderInput) (int64, error)
}

// StatusReader is the minimal interface needed to read order status.
type StatusReader interface {
	GetStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error)
}

// HandleSubmitOrder returns an HTTP handler for POST /api/orders.
func HandleSubmitOrder(svc OrderSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req submitOrderRequest
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		items := make([]domain.OrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		orderID, err := svc.SubmitOrder(r.Context(), app.SubmitOrderInput{
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			Items:         items,
		})
		if err != nil {
			switch err {
			case domain.ErrCustomerNameRequired, domain.ErrCustomerEmailRequired:
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, err.Error())
			case domain.ErrItemsRequired, domain.ErrInvalidItem:
				writeError(w, http.StatusBadRequest, codeInvalidItems, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(submitOrderResponse{OrderID: orderID})
	}
}

// HandleOrderStatus returns an HTTP handler for GET /api/orders/{id}.
func HandleOrderStatus(svc StatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		orderID, ok := parseOrderPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		status, err := svc.GetStatus(r.Context(), orderID)
		if err != nil {
			switch err {
			case domain.ErrOrderNotFound:
				writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(orderStatusResponse{
			OrderID: orderID,
			Status:  string(status),
		})
	}
}

func parseOrderPath(path string) (int64, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return 0, false
	}
	if parts[0] != "api" || parts[1] != "orders" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

type submitOrderRequest struct {
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	Items         []submitOrderItem `json:"items"`
}

type submitOrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type submitOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

type orderStatusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}
