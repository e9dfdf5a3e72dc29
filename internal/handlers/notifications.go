package handlers

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/scheduler"
)

// NotificationHandler computes maintenance notifications fresh per request;
// nothing is persisted or pushed.
type NotificationHandler struct {
	store *db.Store

	// now is the reference instant; overridable in tests.
	now func() time.Time
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(store *db.Store) *NotificationHandler {
	return &NotificationHandler{store: store, now: time.Now}
}

// List returns the caller's maintenance notifications ordered by urgency.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	vehicles, err := h.store.Vehicles.FindVehicles(r.Context(), bson.M{"owner": actor.ID})
	if err != nil {
		writeError(w, err)
		return
	}

	histories := make([]scheduler.VehicleHistory, 0, len(vehicles))
	for _, vehicle := range vehicles {
		services, err := h.store.Services.FindServices(r.Context(), bson.M{"vehicle": vehicle.ID})
		if err != nil {
			writeError(w, err)
			return
		}
		histories = append(histories, scheduler.VehicleHistory{
			Vehicle:  vehicle,
			Services: services,
		})
	}

	result := scheduler.ComputeNotifications(histories, h.now())

	writeJSON(w, http.StatusOK, "Notifications retrieved successfully", result)
}
