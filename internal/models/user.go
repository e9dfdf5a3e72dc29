package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleGarage Role = "garage"
)

// User represents an account in the system. Accounts created by a garage
// carry the creating garage's id in GarageID. Vehicles is the denormalized
// set of vehicle ids owned by this user; it is only ever edited through the
// consistency manager.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username"`
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Role         Role                 `bson:"role" json:"role"`
	GarageID     *primitive.ObjectID  `bson:"garage_id,omitempty" json:"garage_id,omitempty"`
	Vehicles     []primitive.ObjectID `bson:"vehicles" json:"vehicles"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserUpdateRequest carries the fields an admin may change on a user.
type UserUpdateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	GarageID string `json:"garage_id,omitempty"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleGarage:
		return true
	default:
		return false
	}
}
