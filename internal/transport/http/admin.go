package http

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const adminCookieName = "admin_session"

// AdminSessions checks operator credentials against the configured pair and
// tracks issued session tokens in memory. Sessions expire after a day.
type AdminSessions struct {
	username string
	password string

	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

func NewAdminSessions(username, password string) *AdminSessions {
	return &AdminSessions{
		username: username,
		password: password,
		tokens:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Login validates credentials and returns a fresh session token.
func (a *AdminSessions) Login(username, password string) (string, bool) {
	if a.username == "" {
		return "", false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", false
	}

	token := uuid.NewString()
	a.mu.Lock()
	a.tokens[token] = a.now().Add(24 * time.Hour)
	a.mu.Unlock()
	return token, true
}

// Logout revokes the request's session token, if any.
func (a *AdminSessions) Logout(r *http.Request) {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil {
		return
	}
	a.mu.Lock()
	delete(a.tokens, cookie.Value)
	a.mu.Unlock()
}

// Authorized reports whether the request carries a live admin session.
func (a *AdminSessions) Authorized(r *http.Request) bool {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	expiry, ok := a.tokens[cookie.Value]
	if !ok {
		return false
	}
	if !expiry.After(a.now()) {
		delete(a.tokens, cookie.Value)
		return false
	}
	return true
}
