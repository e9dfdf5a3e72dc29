package handlers

import (
	"net/http"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/auth"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	users       db.UserStore
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, users db.UserStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
	}
}

// Register handles user registration. Self-registered accounts always get
// the plain user role.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	if err := h.authService.ValidateUsername(req.Username); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.authService.ValidateEmail(req.Email); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.authService.ValidatePassword(req.Password); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if _, err := h.users.FindUserByEmail(r.Context(), req.Email); err == nil {
		writeFailure(w, http.StatusConflict, "User already exists with this email", nil)
		return
	} else if apperr.IsStore(err) {
		writeError(w, err)
		return
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}
	if err := h.users.InsertUser(r.Context(), &user); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.authService.GenerateToken(&user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, "User registered successfully", models.LoginResponse{
		Token: token,
		User:  user,
	})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Email and password are required", nil)
		return
	}

	user, err := h.users.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if apperr.IsStore(err) {
			writeError(w, err)
			return
		}
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	if !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Login successful", models.LoginResponse{
		Token: token,
		User:  *user,
	})
}

// Me returns the authenticated caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	user, err := h.users.FindUserByID(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Profile retrieved successfully", map[string]interface{}{
		"user": user,
	})
}
