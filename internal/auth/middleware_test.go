package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret, subject string, scopes []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":    subject,
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	verifier, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return NewMiddleware(verifier)
}

func TestVerifierRejectsEmptySecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Fatal("NewVerifier with empty secret succeeded, want error")
	}
}

func TestVerifyTokenExtractsClaims(t *testing.T) {
	verifier, _ := NewVerifier(testSecret)
	token := signToken(t, testSecret, "operator-1", []string{ScopeRead, ScopeControl})

	claims, err := verifier.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.Subject != "operator-1" {
		t.Errorf("Subject = %q, want operator-1", claims.Subject)
	}
	if len(claims.Scopes) != 2 {
		t.Errorf("Scopes = %v, want [read control]", claims.Scopes)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	verifier, _ := NewVerifier(testSecret)
	token := signToken(t, "other-secret", "x", nil)

	if _, err := verifier.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken with wrong secret succeeded, want error")
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	verifier, _ := NewVerifier(testSecret)
	for _, token := range []string{"", "   ", "not.a.jwt"} {
		if _, err := verifier.VerifyToken(token); err == nil {
			t.Errorf("VerifyToken(%q) succeeded, want error", token)
		}
	}
}

func TestRequireAuthPassesClaimsThrough(t *testing.T) {
	mw := newTestMiddleware(t)

	var got *Claims
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaimsFromRequest(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "operator-1", []string{ScopeRead}))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.Subject != "operator-1" {
		t.Errorf("claims in context = %+v, want subject operator-1", got)
	}
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	mw := newTestMiddleware(t)
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["code"] != "UNAUTHORIZED" || body["result"] != "error" {
		t.Errorf("body = %v, want error envelope with UNAUTHORIZED", body)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	mw := newTestMiddleware(t)
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with invalid token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "x", nil))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthExemptsHealth(t *testing.T) {
	mw := newTestMiddleware(t)
	called := false
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	handler(httptest.NewRecorder(), req)

	if !called {
		t.Error("health endpoint required credentials")
	}
}

func TestRequireScopeEnforcesControl(t *testing.T) {
	mw := newTestMiddleware(t)
	handler := mw.RequireAuth(mw.RequireScope(ScopeControl)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Read-only token cannot hit a control endpoint.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "viewer", []string{ScopeRead}))
	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("read-only token status = %d, want 403", rec.Code)
	}

	// Control token can.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/stop", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "operator", []string{ScopeRead, ScopeControl}))
	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("control token status = %d, want 200", rec.Code)
	}
}
