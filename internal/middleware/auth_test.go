package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware_ValidToken(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")

	var gotID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetOperatorIDFromContext(r.Context())
		if !ok {
			t.Fatalf("operator id missing from context")
		}
		gotID = id
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pos/status", nil)
	req.Header.Set(AuthHeader, auth.IssueToken(42))
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Result().StatusCode)
	}
	if gotID != 42 {
		t.Fatalf("operator id = %d, want 42", gotID)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler must not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pos/status", nil)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Result().StatusCode)
	}
}

func TestAuthMiddleware_TamperedToken(t *testing.T) {
	auth := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler must not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/pos/status", nil)
	req.Header.Set(AuthHeader, other.IssueToken(42))
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Result().StatusCode)
	}
}
