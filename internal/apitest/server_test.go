package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuth(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s, err := NewSeeded(Options{BcryptCost: bcrypt.MinCost, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewSeeded() error = %v", err)
	}

	valid, _ := s.IssueToken(SeedParentID, "parent", time.Hour)
	expired, _ := s.IssueToken(SeedParentID, "parent", -time.Minute)
	unknown, _ := s.IssueToken(999, "parent", time.Hour)
	other := New(Options{Secret: "different"})
	forged, _ := other.IssueToken(SeedParentID, "parent", time.Hour)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "valid token", token: valid, wantStatus: http.StatusOK},
		{name: "missing token", token: "", wantStatus: http.StatusUnauthorized},
		{name: "expired token", token: expired, wantStatus: http.StatusUnauthorized},
		{name: "unknown user", token: unknown, wantStatus: http.StatusUnauthorized},
		{name: "wrong signing key", token: forged, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, s, "GET", "/api/auth/verify", tt.token, nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("GET /api/auth/verify = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireParent(t *testing.T) {
	s, err := NewSeeded(Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewSeeded() error = %v", err)
	}
	childToken, _ := s.IssueToken(SeedChild2ID, "child", time.Hour)

	rr := doJSON(t, s, "GET", "/api/children", childToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("GET /api/children as child = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestFailAndHits(t *testing.T) {
	s, err := NewSeeded(Options{BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewSeeded() error = %v", err)
	}
	token, _ := s.IssueToken(SeedParentID, "parent", time.Hour)
	route := "POST /api/auth/verify-password"

	s.Fail(route, http.StatusServiceUnavailable)
	rr := doJSON(t, s, "POST", "/api/auth/verify-password", token, map[string]string{"password": SeedParentPassword})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("injected failure status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	s.Recover(route)
	rr = doJSON(t, s, "POST", "/api/auth/verify-password", token, map[string]string{"password": SeedParentPassword})
	if rr.Code != http.StatusOK {
		t.Errorf("status after Recover = %d, want %d", rr.Code, http.StatusOK)
	}

	if got := s.Hits(route); got != 2 {
		t.Errorf("Hits(%q) = %d, want 2", route, got)
	}
}

func TestLoginRateLimit(t *testing.T) {
	s, err := NewSeeded(Options{BcryptCost: bcrypt.MinCost, LoginAttempts: 2})
	if err != nil {
		t.Fatalf("NewSeeded() error = %v", err)
	}
	body := map[string]string{"phone": SeedParentPhone, "password": "wrong1"}

	for i := 0; i < 2; i++ {
		if rr := doJSON(t, s, "POST", "/api/auth/login", "", body); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want %d", i+1, rr.Code, http.StatusUnauthorized)
		}
	}
	if rr := doJSON(t, s, "POST", "/api/auth/login", "", body); rr.Code != http.StatusTooManyRequests {
		t.Errorf("third attempt status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
}

func TestRegister(t *testing.T) {
	s := New(Options{BcryptCost: bcrypt.MinCost})
	body := map[string]string{"phone": "13700137000", "password": "abc123", "nickname": "Dad", "role": "parent"}

	if rr := doJSON(t, s, "POST", "/api/auth/register", "", body); rr.Code != http.StatusOK {
		t.Fatalf("register status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr := doJSON(t, s, "POST", "/api/auth/register", "", body); rr.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want %d", rr.Code, http.StatusConflict)
	}
}
