package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xinyao2002/payfrontwithback/internal/auth"
	"github.com/xinyao2002/payfrontwithback/internal/models"
	"github.com/xinyao2002/payfrontwithback/internal/service"
)

// AuthHandlers serves registration and login, issuing JWTs for the rest of
// the API. Credential management beyond this (password reset, email) lives
// outside this service.
type AuthHandlers struct {
	authenticator *auth.PasswordAuthenticator
	jwtManager    *auth.JWTManager
}

// NewAuthHandlers creates the auth handler set.
func NewAuthHandlers(authenticator *auth.PasswordAuthenticator, jwtManager *auth.JWTManager) *AuthHandlers {
	return &AuthHandlers{authenticator: authenticator, jwtManager: jwtManager}
}

type authResponse struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

type userPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserPayload(u *models.User) userPayload {
	return userPayload{ID: u.ID, Name: u.Name, Email: u.Email}
}

// register handles POST /api/auth/register.
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}
	if req.Email == "" || req.Name == "" {
		writeErr(w, fmt.Errorf("%w: email and name required", service.ErrValidation))
		return
	}

	user, err := h.authenticator.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		slog.Error("Registration failed", "email", req.Email, "error", err)
		writeErr(w, err)
		return
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeErr(w, err)
		return
	}

	slog.Info("User registered", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, authResponse{User: toUserPayload(user), Token: token})
}

// login handles POST /api/auth/login.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeErr(w, auth.ErrInvalidCredentials)
		return
	}

	user, err := h.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("Login failed", "email", req.Email, "error", err)
		writeErr(w, err)
		return
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeErr(w, err)
		return
	}

	slog.Info("User logged in", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusOK, authResponse{User: toUserPayload(user), Token: token})
}
