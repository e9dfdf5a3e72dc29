package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/consistency"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/models"
)

// serviceRequest is the create/update body: the target vehicle plus the
// service attributes.
type serviceRequest struct {
	Vehicle string `json:"vehicle"`
	models.ServiceInput
}

// ServiceHandler handles the caller-scoped service-record endpoints.
type ServiceHandler struct {
	store   *db.Store
	manager *consistency.Manager
}

// NewServiceHandler creates a new service handler
func NewServiceHandler(store *db.Store, manager *consistency.Manager) *ServiceHandler {
	return &ServiceHandler{store: store, manager: manager}
}

// List returns the caller's service records, most recent first, optionally
// filtered by type and vehicle.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	filter := bson.M{}
	if t := r.URL.Query().Get("type"); t != "" {
		filter["type"] = models.ServiceType(t)
	}

	if vehicleParam := r.URL.Query().Get("vehicle_id"); vehicleParam != "" {
		vehicleID, err := primitive.ObjectIDFromHex(vehicleParam)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid vehicle ID", nil)
			return
		}
		if _, ok := h.resolveOwnVehicle(w, r, actor.ID, vehicleID); !ok {
			return
		}
		filter["vehicle"] = vehicleID
	} else {
		vehicles, err := h.store.Vehicles.FindVehicles(r.Context(), bson.M{"owner": actor.ID})
		if err != nil {
			writeError(w, err)
			return
		}
		ids := make([]primitive.ObjectID, len(vehicles))
		for i, v := range vehicles {
			ids[i] = v.ID
		}
		filter["vehicle"] = bson.M{"$in": ids}
	}

	services, err := h.store.Services.FindServices(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Services retrieved successfully", map[string]interface{}{
		"services": services,
		"count":    len(services),
	})
}

// Create validates and persists a new service on one of the caller's
// vehicles.
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req serviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	vehicleID, err := primitive.ObjectIDFromHex(req.Vehicle)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid vehicle ID", nil)
		return
	}
	if _, ok := h.resolveOwnVehicle(w, r, actor.ID, vehicleID); !ok {
		return
	}

	service, err := h.manager.CreateService(r.Context(), vehicleID, req.ServiceInput)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Service created successfully", map[string]interface{}{
		"service": service,
	})
}

// Get returns one of the caller's service records.
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	service, ok := h.ownService(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, "Service retrieved successfully", map[string]interface{}{
		"service": service,
	})
}

// Update modifies one of the caller's service records, optionally moving
// it to another of the caller's vehicles.
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	service, ok := h.ownService(w, r)
	if !ok {
		return
	}

	var req serviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	vehicleID := service.Vehicle
	if req.Vehicle != "" {
		parsed, err := primitive.ObjectIDFromHex(req.Vehicle)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid vehicle ID", nil)
			return
		}
		if parsed != vehicleID {
			if _, ok := h.resolveOwnVehicle(w, r, actor.ID, parsed); !ok {
				return
			}
			vehicleID = parsed
		}
	}

	updated, err := h.manager.UpdateService(r.Context(), service.ID, vehicleID, req.ServiceInput)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Service updated successfully", map[string]interface{}{
		"service": updated,
	})
}

// Delete removes one of the caller's service records.
func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	service, ok := h.ownService(w, r)
	if !ok {
		return
	}

	if err := h.manager.DeleteService(r.Context(), service.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Service deleted successfully", nil)
}

// ownService resolves the path id to a service on a vehicle the caller
// owns. Records reachable only through someone else's vehicle are reported
// as not found.
func (h *ServiceHandler) ownService(w http.ResponseWriter, r *http.Request) (*models.Service, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return nil, false
	}

	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid service ID", nil)
		return nil, false
	}

	service, err := h.store.Services.FindServiceByID(r.Context(), id)
	if err != nil {
		if apperr.IsStore(err) {
			writeError(w, err)
			return nil, false
		}
		writeFailure(w, http.StatusNotFound, "Service not found", nil)
		return nil, false
	}

	if _, ok := h.resolveOwnVehicle(w, r, actor.ID, service.Vehicle); !ok {
		return nil, false
	}
	return service, true
}

// resolveOwnVehicle checks that vehicleID belongs to ownerID, writing the
// response on failure.
func (h *ServiceHandler) resolveOwnVehicle(w http.ResponseWriter, r *http.Request, ownerID, vehicleID primitive.ObjectID) (*models.Vehicle, bool) {
	vehicle, err := h.store.Vehicles.FindVehicleByID(r.Context(), vehicleID)
	if err != nil {
		if apperr.IsStore(err) {
			writeError(w, err)
			return nil, false
		}
		writeFailure(w, http.StatusNotFound, "Vehicle not found", nil)
		return nil, false
	}
	if vehicle.Owner != ownerID {
		writeFailure(w, http.StatusNotFound, "Vehicle not found", nil)
		return nil, false
	}
	return vehicle, true
}
