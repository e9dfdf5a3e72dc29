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

// vehicleWithServices is a vehicle with its service records populated.
type vehicleWithServices struct {
	models.Vehicle
	ServiceRecords []models.Service `json:"service_records"`
}

// VehicleHandler handles the caller-scoped vehicle endpoints.
type VehicleHandler struct {
	store   *db.Store
	manager *consistency.Manager
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(store *db.Store, manager *consistency.Manager) *VehicleHandler {
	return &VehicleHandler{store: store, manager: manager}
}

// List returns the caller's vehicles, newest first, services populated.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
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

	populated := make([]vehicleWithServices, 0, len(vehicles))
	for _, vehicle := range vehicles {
		services, err := h.store.Services.FindServices(r.Context(), bson.M{"vehicle": vehicle.ID})
		if err != nil {
			writeError(w, err)
			return
		}
		populated = append(populated, vehicleWithServices{Vehicle: vehicle, ServiceRecords: services})
	}

	writeJSON(w, http.StatusOK, "Vehicles retrieved successfully", map[string]interface{}{
		"vehicles": populated,
		"count":    len(populated),
	})
}

// Create validates and persists a new vehicle owned by the caller.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var input models.VehicleInput
	if err := decodeBody(r, &input); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	vehicle, err := h.manager.CreateVehicle(r.Context(), actor.ID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Vehicle created successfully", map[string]interface{}{
		"vehicle": vehicle,
	})
}

// Get returns one of the caller's vehicles with its services populated.
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.ownVehicle(w, r)
	if !ok {
		return
	}

	services, err := h.store.Services.FindServices(r.Context(), bson.M{"vehicle": vehicle.ID})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Vehicle retrieved successfully", map[string]interface{}{
		"vehicle": vehicleWithServices{Vehicle: *vehicle, ServiceRecords: services},
	})
}

// Update modifies one of the caller's vehicles.
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.ownVehicle(w, r)
	if !ok {
		return
	}

	var input models.VehicleInput
	if err := decodeBody(r, &input); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	updated, err := h.manager.UpdateVehicle(r.Context(), vehicle.ID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Vehicle updated successfully", map[string]interface{}{
		"vehicle": updated,
	})
}

// Delete cascade-deletes one of the caller's vehicles.
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := h.ownVehicle(w, r)
	if !ok {
		return
	}

	if err := h.manager.CascadeDeleteVehicle(r.Context(), vehicle.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Vehicle deleted successfully", nil)
}

// ownVehicle resolves the path id to a vehicle owned by the caller. A
// vehicle owned by someone else is reported as not found, not forbidden.
func (h *VehicleHandler) ownVehicle(w http.ResponseWriter, r *http.Request) (*models.Vehicle, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
		return nil, false
	}

	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid vehicle ID", nil)
		return nil, false
	}

	vehicle, err := h.store.Vehicles.FindVehicleByID(r.Context(), id)
	if err != nil {
		if apperr.IsStore(err) {
			writeError(w, err)
			return nil, false
		}
		writeFailure(w, http.StatusNotFound, "Vehicle not found", nil)
		return nil, false
	}
	if vehicle.Owner != actor.ID {
		writeFailure(w, http.StatusNotFound, "Vehicle not found", nil)
		return nil, false
	}
	return vehicle, true
}
