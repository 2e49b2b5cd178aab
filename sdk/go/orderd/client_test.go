package orderd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockServer creates an httptest server that mimics the orderd API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	// Always register auth endpoint.
	if _, ok := handlers["POST /auth/token"]; !ok {
		mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"token":      "test-token-xyz",
					"expires_at": time.Now().Add(1 * time.Hour).Format(time.RFC3339),
				},
			})
		})
	}

	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:  serverURL,
		ClientID: "test-client",
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing base URL", Config{ClientID: "c", APIKey: "k"}},
		{"missing client ID", Config{BaseURL: "http://x", APIKey: "k"}},
		{"missing API key", Config{BaseURL: "http://x", ClientID: "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewClient(tc.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCreateOrderSendsBearerToken(t *testing.T) {
	orderID := uuid.New()

	srv := mockServer(t, map[string]http.HandlerFunc{
		"PUT /v1/orders": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-token-xyz" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": "UNAUTHORIZED", "message": "bad token"},
				})
				return
			}
			var req CreateOrderRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.CustomerName != "Acme GmbH" || req.TotalCents != 2500 {
				t.Errorf("unexpected request body: %+v", req)
			}
			writeJSON(w, http.StatusCreated, map[string]any{
				"data": Order{
					ID:           orderID,
					CustomerName: req.CustomerName,
					Status:       StatusPendingPayment,
					TotalCents:   req.TotalCents,
					Currency:     req.Currency,
				},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerName: "Acme GmbH",
		TotalCents:   2500,
		Currency:     "EUR",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.ID != orderID {
		t.Errorf("expected order ID %s, got %s", orderID, order.ID)
	}
	if order.Status != StatusPendingPayment {
		t.Errorf("expected status %q, got %q", StatusPendingPayment, order.Status)
	}
}

func TestListOrdersDecodesPageEnvelope(t *testing.T) {
	var gotQuery string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/orders": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			writeJSON(w, http.StatusOK, map[string]any{
				"total":         12,
				"filteredTotal": 4,
				"data": []Order{
					{ID: uuid.New(), CustomerName: "a", Status: StatusPaid},
					{ID: uuid.New(), CustomerName: "b", Status: StatusPaid},
				},
			})
		},
	})
	defer srv.Close()

	limit := 2
	client := newTestClient(t, srv.URL)
	page, err := client.ListOrders(context.Background(), &ListOrdersOptions{
		Status: StatusPaid,
		SortBy: "total",
		Limit:  &limit,
	})
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if page.Total != 12 || page.FilteredTotal != 4 {
		t.Errorf("expected totals 12/4, got %d/%d", page.Total, page.FilteredTotal)
	}
	if len(page.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(page.Orders))
	}

	for _, want := range []string{"status=paid", "sortby=total", "limit=2"} {
		if !containsParam(gotQuery, want) {
			t.Errorf("expected query to contain %q, got %q", want, gotQuery)
		}
	}
}

func TestListOrdersSendsExplicitZeroLimit(t *testing.T) {
	var gotQuery string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/orders": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			writeJSON(w, http.StatusOK, map[string]any{
				"total": 7, "filteredTotal": 7, "data": []Order{},
			})
		},
	})
	defer srv.Close()

	zero := 0
	client := newTestClient(t, srv.URL)
	page, err := client.ListOrders(context.Background(), &ListOrdersOptions{Limit: &zero})
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if !containsParam(gotQuery, "limit=0") {
		t.Errorf("explicit zero limit must reach the wire, got query %q", gotQuery)
	}
	if page.Orders == nil || len(page.Orders) != 0 {
		t.Errorf("expected empty non-nil page, got %#v", page.Orders)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/orders/{order_id}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"code": "NOT_FOUND", "message": "order not found"},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetOrder(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound, got %v", err)
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.Message != "order not found" {
		t.Errorf("unexpected error fields: %+v", apiErr)
	}
}

func TestCapturePaymentErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		check  func(error) bool
	}{
		{"underpayment", http.StatusPaymentRequired, "PAYMENT_REQUIRED", IsPaymentRequired},
		{"overpayment", http.StatusBadRequest, "INVALID_ARGUMENT", IsInvalidArgument},
		{"already paid", http.StatusConflict, "CONFLICT", IsConflict},
		{"wrong role", http.StatusForbidden, "FORBIDDEN", IsForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := mockServer(t, map[string]http.HandlerFunc{
				"PATCH /v1/orders/{order_id}/capture": func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tc.status, map[string]any{
						"error": map[string]any{"code": tc.code, "message": "nope"},
					})
				},
			})
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.CapturePayment(context.Background(), uuid.New(), 100, MethodCard)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tc.check(err) {
				t.Errorf("classification check failed for %v", err)
			}
		})
	}
}

func TestCapturePaymentSuccess(t *testing.T) {
	orderID := uuid.New()
	paymentID := uuid.New()

	srv := mockServer(t, map[string]http.HandlerFunc{
		"PATCH /v1/orders/{order_id}/capture": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode capture body: %v", err)
			}
			if body["amount_cents"] != float64(2500) || body["method"] != MethodTransfer {
				t.Errorf("unexpected capture body: %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data": Payment{ID: paymentID, OrderID: orderID, AmountCents: 2500, Method: MethodTransfer},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	payment, err := client.CapturePayment(context.Background(), orderID, 2500, MethodTransfer)
	if err != nil {
		t.Fatalf("CapturePayment failed: %v", err)
	}
	if payment.ID != paymentID || payment.OrderID != orderID {
		t.Errorf("unexpected payment: %+v", payment)
	}
}

func TestDeleteOrderNoContent(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"DELETE /v1/orders/{order_id}": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.DeleteOrder(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}
}

func TestListPaymentsEmptyIsNotNotFound(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/orders/{order_id}/payments": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": []Payment{}})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	payments, err := client.ListPayments(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if payments == nil || len(payments) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", payments)
	}
}

func TestTokenIsCachedAcrossRequests(t *testing.T) {
	var authCalls atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /auth/token": func(w http.ResponseWriter, r *http.Request) {
			authCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"token":      "test-token-xyz",
					"expires_at": time.Now().Add(1 * time.Hour).Format(time.RFC3339),
				},
			})
		},
		"GET /v1/orders/{order_id}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": Order{ID: uuid.New()}})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.GetOrder(context.Background(), uuid.New()); err != nil {
			t.Fatalf("GetOrder %d failed: %v", i, err)
		}
	}
	if got := authCalls.Load(); got != 1 {
		t.Errorf("expected 1 auth call, got %d", got)
	}
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	var authCalls atomic.Int32

	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /auth/token": func(w http.ResponseWriter, r *http.Request) {
			authCalls.Add(1)
			// Already inside the refresh margin, so every request re-auths.
			writeJSON(w, http.StatusOK, map[string]any{
				"data": map[string]any{
					"token":      "test-token-xyz",
					"expires_at": time.Now().Add(5 * time.Second).Format(time.RFC3339),
				},
			})
		},
		"GET /v1/orders/{order_id}": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": Order{ID: uuid.New()}})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 2; i++ {
		if _, err := client.GetOrder(context.Background(), uuid.New()); err != nil {
			t.Fatalf("GetOrder %d failed: %v", i, err)
		}
	}
	if got := authCalls.Load(); got != 2 {
		t.Errorf("expected 2 auth calls, got %d", got)
	}
}

func TestHealthWorksWithoutAuth(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /auth/token": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"code": "UNAUTHORIZED", "message": "invalid credentials"},
			})
		},
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Error("health check must not send credentials")
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"data": HealthResponse{Status: "healthy", Postgres: "ok"},
			})
		},
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %q", health.Status)
	}
}

func containsParam(query, param string) bool {
	for _, part := range strings.Split(query, "&") {
		if part == param {
			return true
		}
	}
	return false
}
