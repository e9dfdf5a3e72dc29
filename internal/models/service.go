package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
)

// ServiceType classifies a maintenance service.
type ServiceType string

const (
	ServiceOilChange ServiceType = "oil_change"
	ServiceBrakes    ServiceType = "brakes"
	ServiceTires     ServiceType = "tires"
	ServiceFilters   ServiceType = "filters"
	ServiceBattery   ServiceType = "battery"
	ServiceOverhaul  ServiceType = "overhaul"
	ServiceOther     ServiceType = "other"
)

// ScheduledServiceTypes are the types the maintenance scheduler tracks
// against a recommended interval. ServiceOther is deliberately absent.
var ScheduledServiceTypes = []ServiceType{
	ServiceOilChange,
	ServiceBrakes,
	ServiceTires,
	ServiceFilters,
	ServiceBattery,
	ServiceOverhaul,
}

// IsValidServiceType checks if a service type is part of the fixed enum.
func IsValidServiceType(t ServiceType) bool {
	switch t {
	case ServiceOilChange, ServiceBrakes, ServiceTires, ServiceFilters,
		ServiceBattery, ServiceOverhaul, ServiceOther:
		return true
	default:
		return false
	}
}

// Label renders a service type for human-readable messages.
func (t ServiceType) Label() string {
	switch t {
	case ServiceOilChange:
		return "Oil change"
	case ServiceBrakes:
		return "Brakes"
	case ServiceTires:
		return "Tires"
	case ServiceFilters:
		return "Filters"
	case ServiceBattery:
		return "Battery"
	case ServiceOverhaul:
		return "Overhaul"
	case ServiceOther:
		return "Other"
	default:
		return string(t)
	}
}

// Service represents a single maintenance record on a vehicle.
type Service struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Vehicle   primitive.ObjectID `bson:"vehicle" json:"vehicle"`
	Type      ServiceType        `bson:"type" json:"type"`
	Date      time.Time          `bson:"date" json:"date"`
	Odometer  float64            `bson:"odometer" json:"odometer"`
	Notes     string             `bson:"notes" json:"notes"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ServiceInput carries the user-supplied service attributes.
type ServiceInput struct {
	Type     ServiceType `json:"type"`
	Date     time.Time   `json:"date"`
	Odometer float64     `json:"odometer"`
	Notes    string      `json:"notes"`
}

// Validate checks the field constraints on a service record. The returned
// error, if any, is an *apperr.ValidationError listing every violated field.
func (in ServiceInput) Validate(now time.Time) error {
	ve := &apperr.ValidationError{}

	if !IsValidServiceType(in.Type) {
		ve.Add("type", "unknown service type")
	}

	if in.Date.IsZero() {
		ve.Add("date", "date is required")
	} else if in.Date.After(now) {
		ve.Add("date", "date cannot be in the future")
	}

	if in.Odometer < 0 {
		ve.Add("odometer", "odometer must be positive")
	}

	if len(strings.TrimSpace(in.Notes)) > 1000 {
		ve.Add("notes", "notes must not exceed 1000 characters")
	}

	return ve.OrNil()
}
