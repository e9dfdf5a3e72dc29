package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind distinguishes upcoming from overdue maintenance alerts.
type NotificationKind string

const (
	NotificationUpcoming NotificationKind = "upcoming_service"
	NotificationOverdue  NotificationKind = "overdue_service"
)

// Priority ranks a notification's urgency tier.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank maps a priority to its numeric order (high=3, medium=2, low=1).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// VehicleRef carries the identifying attributes of the vehicle a
// notification concerns.
type VehicleRef struct {
	ID    primitive.ObjectID `json:"id"`
	Make  string             `json:"make"`
	Model string             `json:"model"`
	Plate string             `json:"plate"`
}

// Notification is one maintenance alert produced by the scheduler.
// Exactly one of DaysUntilService and DaysOverdue is meaningful,
// depending on Kind.
type Notification struct {
	Kind                NotificationKind `json:"type"`
	Priority            Priority         `json:"priority"`
	Vehicle             VehicleRef       `json:"vehicle"`
	ServiceType         ServiceType      `json:"service_type"`
	DaysUntilService    int              `json:"days_until_service,omitempty"`
	DaysOverdue         int              `json:"days_overdue,omitempty"`
	LastServiceDate     time.Time        `json:"last_service_date"`
	LastServiceOdometer float64          `json:"last_service_odometer"`
	Message             string           `json:"message"`
}

// Urgency returns the day count used as the secondary sort key: days until
// service for upcoming notifications, days overdue for overdue ones.
func (n Notification) Urgency() int {
	if n.Kind == NotificationOverdue {
		return n.DaysOverdue
	}
	return n.DaysUntilService
}

// NotificationSummary counts notifications per priority tier.
type NotificationSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}
