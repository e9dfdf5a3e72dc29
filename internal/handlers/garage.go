package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/auth"
	"github.com/karhabti/karhabti-api/internal/consistency"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/models"
)

// garageUserRequest is the body for garage-managed accounts. Role and
// garage binding are never caller-controlled on this surface.
type garageUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GarageHandler handles the garage-scoped user-management endpoints. Every
// operation is constrained to accounts the calling garage created.
type GarageHandler struct {
	authService *auth.Service
	store       *db.Store
	manager     *consistency.Manager
}

// NewGarageHandler creates a new garage handler
func NewGarageHandler(authService *auth.Service, store *db.Store, manager *consistency.Manager) *GarageHandler {
	return &GarageHandler{authService: authService, store: store, manager: manager}
}

// ListUsers returns the accounts created by the calling garage.
func (h *GarageHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	users, err := h.store.Users.FindUsers(r.Context(), bson.M{"garage_id": actor.ID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Users retrieved successfully", map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// CreateUser creates an account bound to the calling garage. The role is
// always the plain user role.
func (h *GarageHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req garageUserRequest
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

	if _, err := h.store.Users.FindUserByEmail(r.Context(), req.Email); err == nil {
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

	garageID := actor.ID
	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		GarageID:     &garageID,
	}
	if err := h.store.Users.InsertUser(r.Context(), &user); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, "User created successfully", map[string]interface{}{
		"user": user,
	})
}

// GetUser returns one garage-created account.
func (h *GarageHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.scopedUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, "User retrieved successfully", map[string]interface{}{
		"user": user,
	})
}

// UpdateUser changes a garage-created account's username or email. Role,
// garage binding and password are not editable on this surface.
func (h *GarageHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.scopedUser(w, r)
	if !ok {
		return
	}

	var req garageUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	fields := bson.M{}
	if req.Username != "" {
		if err := h.authService.ValidateUsername(req.Username); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		fields["username"] = req.Username
	}
	if req.Email != "" {
		if err := h.authService.ValidateEmail(req.Email); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		fields["email"] = req.Email
	}
	if len(fields) > 0 {
		if err := h.store.Users.UpdateUser(r.Context(), user.ID, fields); err != nil {
			writeError(w, err)
			return
		}
	}

	updated, err := h.store.Users.FindUserByID(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User updated successfully", map[string]interface{}{
		"user": updated,
	})
}

// DeleteUser cascade-deletes a garage-created account and everything it
// owns.
func (h *GarageHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.scopedUser(w, r)
	if !ok {
		return
	}

	if err := h.manager.CascadeDeleteUser(r.Context(), user.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User deleted successfully", nil)
}

// scopedUser resolves the path id to an account created by the calling
// garage. Accounts outside the garage's scope are reported as not found.
func (h *GarageHandler) scopedUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return nil, false
	}

	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}

	user, err := h.store.Users.FindUserByID(r.Context(), id)
	if err != nil {
		if apperr.IsStore(err) {
			writeError(w, err)
			return nil, false
		}
		writeFailure(w, http.StatusNotFound, "User not found or not authorized", nil)
		return nil, false
	}
	if user.GarageID == nil || *user.GarageID != actor.ID {
		writeFailure(w, http.StatusNotFound, "User not found or not authorized", nil)
		return nil, false
	}
	return user, true
}
