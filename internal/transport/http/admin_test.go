package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func requestWithSession(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/admin/quiz/start", nil)
	r.AddCookie(&http.Cookie{Name: adminCookieName, Value: token})
	return r
}

func TestAdminSessionsLoginAndExpiry(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	sessions := NewAdminSessions("admin", "secret")
	sessions.now = func() time.Time { return now }

	if _, ok := sessions.Login("admin", "wrong"); ok {
		t.Fatalf("expected bad password to fail")
	}
	token, ok := sessions.Login("admin", "secret")
	if !ok || token == "" {
		t.Fatalf("expected login to succeed")
	}

	if !sessions.Authorized(requestWithSession(token)) {
		t.Fatalf("expected fresh session to authorize")
	}

	now = now.Add(25 * time.Hour)
	if sessions.Authorized(requestWithSession(token)) {
		t.Fatalf("expected expired session to be rejected")
	}
}

func TestAdminSessionsLogoutRevokesToken(t *testing.T) {
	sessions := NewAdminSessions("admin", "secret")
	token, ok := sessions.Login("admin", "secret")
	if !ok {
		t.Fatalf("login failed")
	}

	sessions.Logout(requestWithSession(token))
	if sessions.Authorized(requestWithSession(token)) {
		t.Fatalf("expected revoked session to be rejected")
	}
}

func TestAdminSessionsDisabledWithoutCredentials(t *testing.T) {
	sessions := NewAdminSessions("", "")
	if _, ok := sessions.Login("", ""); ok {
		t.Fatalf("expected login to fail when no credentials configured")
	}
}
