package loginapp

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

var inventory = []string{
	"Sauce Labs Backpack",
	"Sauce Labs Bike Light",
	"Sauce Labs Bolt T-Shirt",
	"Sauce Labs Fleece Jacket",
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleLoginPage)
	mux.HandleFunc("GET /inventory.html", s.handleInventory)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /status", s.handleStatus)
	return mux
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", map[string]interface{}{"Title": Title})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.render(w, "inventory.html", map[string]interface{}{
		"Title":    Title,
		"Username": cookie.Value,
		"Items":    inventory,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, loginResponse{Error: "invalid request body"})
		return
	}

	if s.opts.Latency > 0 {
		select {
		case <-time.After(s.opts.Latency):
		case <-r.Context().Done():
			return
		}
	}

	if msg := s.authenticate(req); msg != "" {
		s.logger.Debug().Str("username", req.Username).Str("reason", msg).Msg("Login rejected")
		writeJSON(w, http.StatusUnauthorized, loginResponse{Error: msg})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    req.Username,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Debug().Str("username", req.Username).Msg("Login accepted")
	writeJSON(w, http.StatusOK, loginResponse{Redirect: "/inventory.html"})
}

// authenticate returns the error banner for req, or "" when it is accepted.
func (s *Server) authenticate(req loginRequest) string {
	username := strings.TrimSpace(req.Username)
	switch {
	case username == "":
		return ErrUsernameRequired
	case req.Password == "":
		return ErrPasswordRequired
	}

	locked, known := s.opts.Users[username]
	if !known || req.Password != s.opts.Password {
		return ErrNoMatch
	}
	if locked {
		return ErrLockedOut
	}
	return ""
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, loginResponse{Redirect: "/"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"server":    "loginapp",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
