package orders

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/quickserve/internal/domain"
)

func newTestServer(t *testing.T, store Store) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t, store)
	r := chi.NewRouter()
	NewHandler(f.service, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(r)
	return f, r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"table_id":"T4","payment_method":"cash","items":[{"menu_item_id":"pizza","quantity":2},{"menu_item_id":"coke","quantity":1}]}`

func TestHandler_HandleCreate(t *testing.T) {
	t.Run("creates order", func(t *testing.T) {
		_, router := newTestServer(t, NewMemoryStore())

		rec := do(router, http.MethodPost, "/orders", createBody)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Order-Persisted") != "true" {
			t.Errorf("expected persisted header true, got %q", rec.Header().Get("X-Order-Persisted"))
		}

		var order domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if order.TotalAmount != 647 {
			t.Errorf("expected total 647, got %d", order.TotalAmount)
		}
		if order.Number != "ORD00001" {
			t.Errorf("expected ORD00001, got %s", order.Number)
		}
	})

	t.Run("degraded mode flags the order as transient", func(t *testing.T) {
		_, router := newTestServer(t, NewDisabledStore())

		rec := do(router, http.MethodPost, "/orders", createBody)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		if rec.Header().Get("X-Order-Persisted") != "false" {
			t.Errorf("expected persisted header false, got %q", rec.Header().Get("X-Order-Persisted"))
		}

		rec = do(router, http.MethodGet, "/orders/active", "")
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("expected empty active list, got %s", rec.Body.String())
		}
	})

	errorCases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "unknown item", body: `{"items":[{"menu_item_id":"ghost","quantity":1}]}`, wantStatus: http.StatusNotFound},
		{name: "out of stock", body: `{"items":[{"menu_item_id":"pizza","quantity":50}]}`, wantStatus: http.StatusConflict},
		{name: "inactive table", body: `{"table_id":"T9","items":[{"menu_item_id":"pizza","quantity":1}]}`, wantStatus: http.StatusBadRequest},
		{name: "bad payment method", body: `{"payment_method":"gold","items":[{"menu_item_id":"pizza","quantity":1}]}`, wantStatus: http.StatusBadRequest},
	}
	for _, testCase := range errorCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, router := newTestServer(t, NewMemoryStore())

			rec := do(router, http.MethodPost, "/orders", testCase.body)
			if rec.Code != testCase.wantStatus {
				t.Errorf("expected status %d, got %d: %s", testCase.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_StatusLifecycle(t *testing.T) {
	_, router := newTestServer(t, NewMemoryStore())

	rec := do(router, http.MethodPost, "/orders", createBody)
	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	steps := []struct {
		method     string
		status     string
		wantStatus int
	}{
		{method: http.MethodPatch, status: "prepared", wantStatus: http.StatusOK},
		{method: http.MethodPut, status: "prepared", wantStatus: http.StatusOK},
		{method: http.MethodPut, status: "delivered", wantStatus: http.StatusOK},
		{method: http.MethodPatch, status: "preparing", wantStatus: http.StatusConflict},
		{method: http.MethodPatch, status: "bogus", wantStatus: http.StatusBadRequest},
	}
	for _, step := range steps {
		rec := do(router, step.method, "/orders/"+order.ID+"/status", `{"status":"`+step.status+`"}`)
		if rec.Code != step.wantStatus {
			t.Errorf("%s %s: expected status %d, got %d: %s", step.method, step.status, step.wantStatus, rec.Code, rec.Body.String())
		}
	}

	rec = do(router, http.MethodGet, "/orders/active", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("delivered order should not be active, got %s", rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/orders/by-table/T4", "")
	var byTable []domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&byTable); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(byTable) != 1 || byTable[0].Status != domain.StatusDelivered {
		t.Errorf("unexpected table orders: %+v", byTable)
	}

	rec = do(router, http.MethodGet, "/orders/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestHandler_Payments(t *testing.T) {
	_, router := newTestServer(t, NewMemoryStore())

	rec := do(router, http.MethodPost, "/orders",
		`{"table_number":3,"payment_method":"upi","items":[{"menu_item_id":"pizza","quantity":1}]}`)
	var order domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if order.Status != domain.StatusPending {
		t.Fatalf("expected pending upi order, got %s", order.Status)
	}

	rec = do(router, http.MethodPost, "/payments/status",
		`{"order_id":"`+order.ID+`","payment_method":"upi","payment_status":"paid","transaction_id":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/payments/verify/"+order.ID, "")
	var verification PaymentVerification
	if err := json.NewDecoder(rec.Body).Decode(&verification); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if verification.PaymentStatus != domain.PaymentPaid || verification.Status != domain.StatusPreparing {
		t.Errorf("unexpected verification: %+v", verification)
	}

	rec = do(router, http.MethodPost, "/payments/status", `{"order_id":"`+order.ID+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestHandler_HandleList(t *testing.T) {
	_, router := newTestServer(t, NewMemoryStore())

	do(router, http.MethodPost, "/orders", createBody)
	do(router, http.MethodPost, "/orders",
		`{"table_number":3,"payment_method":"upi","items":[{"menu_item_id":"coke","quantity":1}]}`)

	list := func(t *testing.T, query string) []domain.Order {
		t.Helper()
		rec := do(router, http.MethodGet, "/orders"+query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var orders []domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&orders); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		return orders
	}

	all := list(t, "")
	if len(all) != 2 || all[0].Number != "ORD00002" {
		t.Fatalf("expected both orders newest first, got %+v", all)
	}

	pending := list(t, "?status=pending")
	if len(pending) != 1 || pending[0].PaymentMethod != domain.PaymentUPI {
		t.Errorf("unexpected pending orders: %+v", pending)
	}

	atT4 := list(t, "?tableId=T4&status=preparing")
	if len(atT4) != 1 || atT4[0].Number != "ORD00001" {
		t.Errorf("unexpected T4 orders: %+v", atT4)
	}

	if got := list(t, "?endDate=2000-01-01"); len(got) != 0 {
		t.Errorf("expected no orders before 2000, got %d", len(got))
	}
	if got := list(t, "?startDate=2000-01-01T00:00:00Z"); len(got) != 2 {
		t.Errorf("expected every order after 2000, got %d", len(got))
	}

	for _, query := range []string{"?status=eaten", "?startDate=yesterday", "?endDate=01/02/2024"} {
		rec := do(router, http.MethodGet, "/orders"+query, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", query, rec.Code)
		}
	}
}
