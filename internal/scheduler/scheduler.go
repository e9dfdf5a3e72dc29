// Package scheduler turns a vehicle's service history into a prioritized
// list of maintenance notifications. The computation is pure: identical
// input and reference time always yield identical output, including order.
package scheduler

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/karhabti/karhabti-api/internal/models"
)

// upcomingWindowDays is how far ahead a due service produces a notification.
const upcomingWindowDays = 90

// recommendedIntervals maps each service type to its recommended interval
// in whole days. Types outside the table default to defaultIntervalDays.
var recommendedIntervals = map[models.ServiceType]int{
	models.ServiceOilChange: 365,
	models.ServiceBrakes:    730,
	models.ServiceTires:     1095,
	models.ServiceFilters:   365,
	models.ServiceBattery:   1095,
	models.ServiceOverhaul:  365,
}

const defaultIntervalDays = 365

// IntervalDays returns the recommended interval for a service type.
func IntervalDays(t models.ServiceType) int {
	if days, ok := recommendedIntervals[t]; ok {
		return days
	}
	return defaultIntervalDays
}

// VehicleHistory is a vehicle with its populated service records.
type VehicleHistory struct {
	Vehicle  models.Vehicle
	Services []models.Service
}

// Result is the scheduler output: the ordered notifications and the count
// per priority tier.
type Result struct {
	Notifications []models.Notification      `json:"notifications"`
	Count         int                        `json:"count"`
	Summary       models.NotificationSummary `json:"summary"`
}

// ComputeNotifications classifies each vehicle's tracked service types as
// upcoming or overdue relative to asOf and returns the notifications
// ordered by priority rank descending, then urgency ascending. Vehicles
// that never received a given service type produce no notification for
// that type.
func ComputeNotifications(vehicles []VehicleHistory, asOf time.Time) Result {
	notifications := []models.Notification{}

	for _, vh := range vehicles {
		if len(vh.Services) == 0 {
			continue
		}
		latest := latestServiceByType(vh.Services)
		for _, serviceType := range models.ScheduledServiceTypes {
			last, ok := latest[serviceType]
			if !ok {
				continue
			}
			if n, due := classify(vh.Vehicle, serviceType, last, asOf); due {
				notifications = append(notifications, n)
			}
		}
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		if notifications[i].Priority.Rank() != notifications[j].Priority.Rank() {
			return notifications[i].Priority.Rank() > notifications[j].Priority.Rank()
		}
		return notifications[i].Urgency() < notifications[j].Urgency()
	})

	summary := models.NotificationSummary{}
	for _, n := range notifications {
		switch n.Priority {
		case models.PriorityHigh:
			summary.High++
		case models.PriorityMedium:
			summary.Medium++
		case models.PriorityLow:
			summary.Low++
		}
	}

	return Result{
		Notifications: notifications,
		Count:         len(notifications),
		Summary:       summary,
	}
}

// latestServiceByType selects, per type, the most recently dated service.
// Two services of the same type sharing the maximum date are tie-broken by
// the larger id, which is arbitrary but reproducible.
func latestServiceByType(services []models.Service) map[models.ServiceType]models.Service {
	latest := make(map[models.ServiceType]models.Service, len(models.ScheduledServiceTypes))
	for _, s := range services {
		best, ok := latest[s.Type]
		if !ok || s.Date.After(best.Date) ||
			(s.Date.Equal(best.Date) && bytes.Compare(s.ID[:], best.ID[:]) > 0) {
			latest[s.Type] = s
		}
	}
	return latest
}

// classify decides whether the last service of a type is due. It returns
// the notification and true when one is warranted.
func classify(vehicle models.Vehicle, serviceType models.ServiceType, last models.Service, asOf time.Time) (models.Notification, bool) {
	daysSince := wholeCalendarDays(last.Date, asOf)
	daysRemaining := IntervalDays(serviceType) - daysSince

	if daysRemaining > upcomingWindowDays {
		return models.Notification{}, false
	}

	ref := models.VehicleRef{
		ID:    vehicle.ID,
		Make:  vehicle.Make,
		Model: vehicle.Model,
		Plate: vehicle.Plate,
	}

	if daysRemaining >= 0 {
		priority := models.PriorityLow
		switch {
		case daysRemaining <= 30:
			priority = models.PriorityHigh
		case daysRemaining <= 60:
			priority = models.PriorityMedium
		}
		return models.Notification{
			Kind:                models.NotificationUpcoming,
			Priority:            priority,
			Vehicle:             ref,
			ServiceType:         serviceType,
			DaysUntilService:    daysRemaining,
			LastServiceDate:     last.Date,
			LastServiceOdometer: last.Odometer,
			Message: fmt.Sprintf("%s service recommended in %d day(s) for %s %s (%s)",
				serviceType.Label(), daysRemaining, vehicle.Make, vehicle.Model, vehicle.Plate),
		}, true
	}

	return models.Notification{
		Kind:                models.NotificationOverdue,
		Priority:            models.PriorityHigh,
		Vehicle:             ref,
		ServiceType:         serviceType,
		DaysOverdue:         -daysRemaining,
		LastServiceDate:     last.Date,
		LastServiceOdometer: last.Odometer,
		Message: fmt.Sprintf("%s service overdue by %d day(s) for %s %s (%s)",
			serviceType.Label(), -daysRemaining, vehicle.Make, vehicle.Model, vehicle.Plate),
	}, true
}

// wholeCalendarDays counts whole calendar days from one instant to another,
// ignoring the time of day on both ends.
func wholeCalendarDays(from, to time.Time) int {
	f := from.UTC()
	t := to.UTC()
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}
