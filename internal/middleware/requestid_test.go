package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var fromContext string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetRequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pos/health", nil)
	rec := httptest.NewRecorder()

	RequestID(next).ServeHTTP(rec, req)

	header := rec.Result().Header.Get("X-Request-ID")
	if header == "" {
		t.Fatalf("X-Request-ID header is empty")
	}
	if fromContext != header {
		t.Fatalf("context id %q != header id %q", fromContext, header)
	}
}

func TestRequestID_KeepsClientValue(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/pos/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec := httptest.NewRecorder()

	RequestID(next).ServeHTTP(rec, req)

	if got := rec.Result().Header.Get("X-Request-ID"); got != "client-id-1" {
		t.Fatalf("X-Request-ID = %q, want client-id-1", got)
	}
}
