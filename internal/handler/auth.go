package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/auth"
	"github.com/fitcompany/console/internal/middleware"
	"github.com/fitcompany/console/internal/upstream"
)

// LoginBackend exchanges credentials for a token.
// Satisfied by *upstream.Client; narrow interface for testability.
type LoginBackend interface {
	Login(ctx context.Context, correo, password string) (string, error)
}

// AuthHandler proxies login to the backend and serves the session menu.
type AuthHandler struct {
	backend LoginBackend
	secret  string
}

// NewAuthHandler creates a new AuthHandler. secret may be empty, in which
// case tokens are only decoded.
func NewAuthHandler(backend LoginBackend, secret string) *AuthHandler {
	return &AuthHandler{backend: backend, secret: secret}
}

// RegisterRoutes registers the public login endpoint.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
}

// RegisterSessionRoutes registers endpoints that need an authenticated token.
func (h *AuthHandler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
	r.Get("/me", h.Me)
}

// --- Request / Response types ---

type loginRequest struct {
	Correo   string `json:"correo"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string      `json:"token"`
	Usuario userSummary `json:"usuario"`
}

type userSummary struct {
	Identificacion string `json:"identificacion"`
	Nombre         string `json:"nombre"`
	Correo         string `json:"correo"`
	Rol            string `json:"rol"`
	PerfilID       int64  `json:"perfil_id"`
	ExpiresAt      *int64 `json:"exp,omitempty"`
}

func summarize(c *auth.Claims) userSummary {
	s := userSummary{
		Identificacion: c.Identificacion,
		Nombre:         strings.TrimSpace(c.Nombre + " " + c.Apellido1),
		Correo:         c.Correo,
		Rol:            c.Rol,
		PerfilID:       c.PerfilID,
	}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Unix()
		s.ExpiresAt = &exp
	}
	return s
}

// --- Handlers ---

// Login forwards credentials and returns the backend's token with the
// decoded user so the client does not need to parse it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Correo = strings.ToLower(strings.TrimSpace(req.Correo))
	if req.Correo == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "correo y contraseña son obligatorios"})
		return
	}

	token, err := h.backend.Login(r.Context(), req.Correo, req.Password)
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": apiErr.UserMessage("Credenciales inválidas.")})
			return
		}
		zap.L().Error("login", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend unavailable"})
		return
	}

	claims, err := auth.Parse(h.secret, token, time.Now())
	if err != nil {
		zap.L().Warn("backend issued an unusable token", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "invalid token from backend"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Usuario: summarize(claims)})
}

// Menu returns the sidebar tree the token's forms allow.
func (h *AuthHandler) Menu(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	menu := auth.Menu(claims)
	if menu == nil {
		menu = []auth.MenuItem{}
	}
	writeJSON(w, http.StatusOK, menu)
}

// Me returns the user carried by the token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, summarize(claims))
}

// backendContext carries the caller's token to backend calls.
func backendContext(r *http.Request) context.Context {
	return upstream.WithToken(r.Context(), middleware.TokenFromContext(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}
