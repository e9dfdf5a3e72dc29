package handlers

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/karhabti/karhabti-api/internal/consistency"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/models"
)

// adminVehicleRequest is the admin vehicle-update body; Owner, when set,
// requests an ownership transfer.
type adminVehicleRequest struct {
	Owner string `json:"owner"`
	models.VehicleInput
}

// AdminHandler handles the admin-only management endpoints.
type AdminHandler struct {
	store   *db.Store
	manager *consistency.Manager
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store *db.Store, manager *consistency.Manager) *AdminHandler {
	return &AdminHandler{store: store, manager: manager}
}

// ListUsers returns every account.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.Users.FindUsers(r.Context(), bson.M{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Users retrieved successfully", map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// GetUser returns one account by id.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.store.Users.FindUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User retrieved successfully", map[string]interface{}{
		"user": user,
	})
}

// UpdateUser changes an account's username, email or role. An admin cannot
// remove their own admin role.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.UserUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	if id == actor.ID && req.Role != "" && req.Role != models.RoleAdmin {
		writeFailure(w, http.StatusBadRequest, "You cannot remove your own admin role", nil)
		return
	}

	if _, err := h.store.Users.FindUserByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	fields := bson.M{}
	if req.Username != "" {
		fields["username"] = req.Username
	}
	if req.Email != "" {
		fields["email"] = req.Email
	}
	if req.Role != "" {
		if !models.IsValidRole(req.Role) {
			writeFailure(w, http.StatusBadRequest, "Invalid role", nil)
			return
		}
		fields["role"] = req.Role
	}
	if len(fields) > 0 {
		if err := h.store.Users.UpdateUser(r.Context(), id, fields); err != nil {
			writeError(w, err)
			return
		}
	}

	user, err := h.store.Users.FindUserByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User updated successfully", map[string]interface{}{
		"user": user,
	})
}

// DeleteUser cascade-deletes an account and everything it owns. Admins
// cannot delete their own account.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.ActorFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id == actor.ID {
		writeFailure(w, http.StatusBadRequest, "You cannot delete your own account", nil)
		return
	}

	if err := h.manager.CascadeDeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User and all associated data deleted successfully", nil)
}

// ListVehicles returns every vehicle.
func (h *AdminHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.store.Vehicles.FindVehicles(r.Context(), bson.M{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Vehicles retrieved successfully", map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// GetVehicle returns one vehicle by id with its services populated.
func (h *AdminHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	vehicle, err := h.store.Vehicles.FindVehicleByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	services, err := h.store.Services.FindServices(r.Context(), bson.M{"vehicle": id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Vehicle retrieved successfully", map[string]interface{}{
		"vehicle": vehicleWithServices{Vehicle: *vehicle, ServiceRecords: services},
	})
}

// UpdateVehicle changes a vehicle's attributes and, when the body names a
// new owner, transfers ownership first.
func (h *AdminHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req adminVehicleRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	vehicle, err := h.store.Vehicles.FindVehicleByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Owner != "" {
		newOwner, err := primitive.ObjectIDFromHex(req.Owner)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid owner ID", nil)
			return
		}
		if newOwner != vehicle.Owner {
			if err := h.manager.TransferVehicleOwnership(r.Context(), id, vehicle.Owner, newOwner); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	updated, err := h.manager.UpdateVehicle(r.Context(), id, req.VehicleInput)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Vehicle updated successfully", map[string]interface{}{
		"vehicle": updated,
	})
}

// DeleteVehicle cascade-deletes any vehicle.
func (h *AdminHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.manager.CascadeDeleteVehicle(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Vehicle deleted successfully", nil)
}

// ListServices returns every service record.
func (h *AdminHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.store.Services.FindServices(r.Context(), bson.M{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Services retrieved successfully", map[string]interface{}{
		"services": services,
		"count":    len(services),
	})
}

// DeleteService removes any service record.
func (h *AdminHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.Services.FindServiceByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.manager.DeleteService(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Service deleted successfully", nil)
}

// Stats aggregates global usage statistics.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := h.store.Users.CountUsers(ctx, bson.M{})
	if err != nil {
		writeError(w, err)
		return
	}
	totalAdmins, err := h.store.Users.CountUsers(ctx, bson.M{"role": models.RoleAdmin})
	if err != nil {
		writeError(w, err)
		return
	}
	totalGarages, err := h.store.Users.CountUsers(ctx, bson.M{"role": models.RoleGarage})
	if err != nil {
		writeError(w, err)
		return
	}
	totalVehicles, err := h.store.Vehicles.CountVehicles(ctx, bson.M{})
	if err != nil {
		writeError(w, err)
		return
	}
	totalServices, err := h.store.Services.CountServices(ctx, bson.M{})
	if err != nil {
		writeError(w, err)
		return
	}

	servicesByType, err := h.store.Services.AggregateServices(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	vehiclesByMake, err := h.store.Vehicles.AggregateVehicles(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$make", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	twelveMonthsAgo := time.Now().AddDate(0, -12, 0)
	servicesByMonth, err := h.store.Services.AggregateServices(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"date": bson.M{"$gte": twelveMonthsAgo}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$date"},
				"month": bson.M{"$month": "$date"},
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id.year": 1, "_id.month": 1}}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	topOwners, err := h.store.Users.AggregateUsers(ctx, mongo.Pipeline{
		{{Key: "$project", Value: bson.M{
			"username":      1,
			"email":         1,
			"vehicle_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$vehicles", bson.A{}}}},
		}}},
		{{Key: "$sort", Value: bson.M{"vehicle_count": -1}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	topVehicles, err := h.store.Vehicles.AggregateVehicles(ctx, mongo.Pipeline{
		{{Key: "$project", Value: bson.M{
			"make":          1,
			"model":         1,
			"plate":         1,
			"service_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$services", bson.A{}}}},
		}}},
		{{Key: "$sort", Value: bson.M{"service_count": -1}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Stats retrieved successfully", map[string]interface{}{
		"totals": map[string]int64{
			"users":    totalUsers,
			"admins":   totalAdmins,
			"garages":  totalGarages,
			"vehicles": totalVehicles,
			"services": totalServices,
		},
		"services_by_type":  servicesByType,
		"vehicles_by_make":  vehiclesByMake,
		"services_by_month": servicesByMonth,
		"top_owners":        topOwners,
		"top_vehicles":      topVehicles,
	})
}

// pathID parses the {id} path segment as an ObjectID.
func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid ID", nil)
		return primitive.NilObjectID, false
	}
	return id, true
}
