package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
)

// Vehicle represents a vehicle and its denormalized set of service ids.
// Owner is always exactly one user; both sides of the relation are edited
// only through the consistency manager.
type Vehicle struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Owner     primitive.ObjectID   `bson:"owner" json:"owner"`
	Make      string               `bson:"make" json:"make"`
	Model     string               `bson:"model" json:"model"`
	Year      int                  `bson:"year" json:"year"`
	Plate     string               `bson:"plate" json:"plate"`
	Services  []primitive.ObjectID `bson:"services" json:"services"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

// VehicleInput carries the user-supplied vehicle attributes.
type VehicleInput struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	Plate string `json:"plate"`
}

// NormalizePlate returns the canonical registration-plate form: trimmed
// and uppercased.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Validate checks the field constraints on a vehicle. The returned error,
// if any, is an *apperr.ValidationError listing every violated field.
func (in VehicleInput) Validate(now time.Time) error {
	ve := &apperr.ValidationError{}

	if strings.TrimSpace(in.Make) == "" {
		ve.Add("make", "make is required")
	} else if len(in.Make) > 50 {
		ve.Add("make", "make must not exceed 50 characters")
	}

	if strings.TrimSpace(in.Model) == "" {
		ve.Add("model", "model is required")
	} else if len(in.Model) > 50 {
		ve.Add("model", "model must not exceed 50 characters")
	}

	if in.Year < 1900 || in.Year > now.Year()+1 {
		ve.Add("year", "year must be between 1900 and next year")
	}

	plate := NormalizePlate(in.Plate)
	if plate == "" {
		ve.Add("plate", "plate is required")
	} else if len(plate) > 20 {
		ve.Add("plate", "plate must not exceed 20 characters")
	}

	return ve.OrNil()
}
