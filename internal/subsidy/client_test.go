package subsidy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testOrder() OrderInput {
	return OrderInput{
		OrderID: "A1",
		Lines:   []OrderLine{{ProductID: int64Ptr(7), Quantity: decimalPtr(2)}},
	}
}

func activeConfig(baseURL string) Config {
	return Config{
		Name:           "test",
		BaseURL:        baseURL,
		APIVersion:     APIVersionV2,
		TimeoutSeconds: 5,
		IsActive:       true,
	}
}

func TestValidate_EndToEnd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v2/validate" {
			t.Fatalf("path = %s, want /v2/validate", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type = %q", ct)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Fatalf("accept = %q", accept)
		}
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Fatalf("user-agent = %q, want %q", ua, userAgent)
		}

		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OrderID != "A1" {
			t.Fatalf("orderId = %q, want A1", req.OrderID)
		}
		if len(req.Items) != 1 || req.Items[0].ProductID != 7 || req.Items[0].Quantity != 2 {
			t.Fatalf("unexpected items: %+v", req.Items)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","amountCharged":8.0,"remainingBalance":42.0}`))
	}))
	defer ts.Close()

	client := NewClient(activeConfig(ts.URL), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out := client.Validate(ctx, testOrder())

	if !out.OK {
		t.Fatalf("Validate failed: %s: %s", out.ErrorKind, out.Message)
	}
	if out.Data == nil {
		t.Fatalf("expected data payload")
	}
	if !out.Data.Valid {
		t.Fatalf("data.valid = false, want true")
	}
	if !out.Data.EmployeeShare.Equal(decimal.NewFromFloat(8.0)) {
		t.Fatalf("employeeShare = %s, want 8", out.Data.EmployeeShare)
	}
	if !out.Data.BalanceAfter.Equal(decimal.NewFromFloat(42.0)) {
		t.Fatalf("balanceAfter = %s, want 42", out.Data.BalanceAfter)
	}
	// Позиции не передавались: totalAmount остаётся нулевым.
	if !out.Data.TotalAmount.IsZero() {
		t.Fatalf("totalAmount = %s, want 0", out.Data.TotalAmount)
	}
}

func TestValidate_InactiveConnectorSkipsNetwork(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	cfg := activeConfig(ts.URL)
	cfg.IsActive = false
	client := NewClient(cfg, nil)

	out := client.Validate(context.Background(), testOrder())

	if out.OK {
		t.Fatalf("expected failure for inactive connector")
	}
	if out.ErrorKind != KindConnectorInactive {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindConnectorInactive)
	}
	if calls.Load() != 0 {
		t.Fatalf("transport calls = %d, want 0", calls.Load())
	}
}

func TestValidate_BuildFailureBecomesProcessingError(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	client := NewClient(activeConfig(ts.URL), nil)

	out := client.Validate(context.Background(), OrderInput{OrderID: "A1"})

	if out.ErrorKind != KindProcessing {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindProcessing)
	}
	if calls.Load() != 0 {
		t.Fatalf("transport calls = %d, want 0", calls.Load())
	}
}

func TestValidate_ValidationErrorInside200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","message":"insufficient balance"}`))
	}))
	defer ts.Close()

	client := NewClient(activeConfig(ts.URL), nil)

	out := client.Validate(context.Background(), testOrder())

	if out.ErrorKind != KindValidation {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindValidation)
	}
	if out.Message != "insufficient balance" {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestValidate_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	client := NewClient(activeConfig(ts.URL), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := client.Validate(ctx, testOrder())

	if out.ErrorKind != KindTimeout {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindTimeout)
	}
}

func TestValidate_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(activeConfig(url), nil)

	out := client.Validate(context.Background(), testOrder())

	if out.ErrorKind != KindConnection {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindConnection)
	}
}

func TestValidate_UnconfiguredClient(t *testing.T) {
	client := NewClient(Config{IsActive: true}, nil)

	out := client.Validate(context.Background(), testOrder())

	if out.ErrorKind != KindUnexpected {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindUnexpected)
	}
}

func TestTestConnection_DecoupledFromBusinessRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.OrderID != testOrderID {
			t.Fatalf("orderId = %q, want %q", req.OrderID, testOrderID)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","message":"unknown product"}`))
	}))
	defer ts.Close()

	client := NewClient(activeConfig(ts.URL), nil)

	out := client.TestConnection(context.Background())

	// Бизнес-отказ по тестовому заказу не мешает успеху проверки связи.
	if !out.OK {
		t.Fatalf("TestConnection failed: %s: %s", out.ErrorKind, out.Message)
	}
}

func TestTestConnection_ReportsTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(activeConfig(url), nil)

	out := client.TestConnection(context.Background())

	if out.OK {
		t.Fatalf("expected transport failure")
	}
	if out.ErrorKind != KindConnection {
		t.Fatalf("errorKind = %s, want %s", out.ErrorKind, KindConnection)
	}
}
