package api

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"usage-analytics/pkg/router"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "dashboard_session"

// Gate protects the API behind a shared passphrase. An empty passphrase
// disables it.
type Gate struct {
	passphrase string
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

// NewGate returns a gate issuing sessions valid for ttl.
func NewGate(passphrase string, ttl time.Duration) *Gate {
	return &Gate{
		passphrase: passphrase,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]time.Time),
	}
}

// Enabled reports whether a passphrase is configured.
func (g *Gate) Enabled() bool {
	return g.passphrase != ""
}

func (g *Gate) valid(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.sessions[token]
	if !ok {
		return false
	}
	if g.now().After(exp) {
		delete(g.sessions, token)
		return false
	}
	return true
}

func (g *Gate) issue() (string, time.Time) {
	token := uuid.New().String()
	exp := g.now().Add(g.ttl)
	g.mu.Lock()
	g.sessions[token] = exp
	g.mu.Unlock()
	return token, exp
}

func (g *Gate) revoke(token string) {
	g.mu.Lock()
	delete(g.sessions, token)
	g.mu.Unlock()
}

func public(path string) bool {
	return path == "/api/v1/login" || strings.HasPrefix(path, "/swagger/")
}

// Middleware rejects requests without a valid session.
func (g *Gate) Middleware(next router.HandlerFunc) router.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() || public(r.URL.Path) {
			next(w, r)
			return
		}
		c, err := r.Cookie(SessionCookie)
		if err != nil || !g.valid(c.Value) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type loginRequest struct {
	Passphrase string `json:"passphrase"`
}

// Login exchanges the passphrase for a session cookie
// @Summary Log in
// @Description Exchange the dashboard passphrase for a session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Session created"
// @Failure 401 {string} string "Wrong passphrase"
// @Router /login [post]
func (g *Gate) Login(w http.ResponseWriter, r *http.Request) {
	if !g.Enabled() {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"authenticated": true, "gate": false})
		return
	}

	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
	} else {
		req.Passphrase = r.FormValue("passphrase")
	}

	if subtle.ConstantTimeCompare([]byte(req.Passphrase), []byte(g.passphrase)) != 1 {
		log.Printf("⚠️ Rejected login from %s", r.RemoteAddr)
		http.Error(w, "Wrong passphrase", http.StatusUnauthorized)
		return
	}

	token, exp := g.issue()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"authenticated": true, "expiresAt": exp.UTC()})
}

// Logout drops the current session
// @Summary Log out
// @Tags auth
// @Success 204 "Session dropped"
// @Router /logout [post]
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		g.revoke(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}
