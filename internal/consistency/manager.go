// Package consistency owns every mutation that touches more than one
// record's relational fields: linking, unlinking, cascading deletes and
// ownership transfer. The store gives no multi-document transaction, so
// each multi-step mutation is an ordered sequence of idempotent
// single-document operations; re-running an interrupted sequence to
// completion converges on the same final state.
//
// Concurrent multi-step sequences racing on the same vehicle (two
// transfers, or a transfer against a delete) are not serialized here and
// can interleave into a transient inconsistency; CheckUserInvariants
// surfaces, and never repairs, whatever state such a race leaves behind.
package consistency

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/models"
)

// Manager sequences relation-graph mutations over the record store.
// Callers are authorized upstream; the manager checks referential
// validity only.
type Manager struct {
	users    db.UserStore
	vehicles db.VehicleStore
	services db.ServiceStore
}

// NewManager creates a consistency manager over the given store.
func NewManager(store *db.Store) *Manager {
	return &Manager{
		users:    store.Users,
		vehicles: store.Vehicles,
		services: store.Services,
	}
}

// LinkVehicle adds the vehicle to the owner's set. Set-union semantics:
// re-applying the link has no additional effect.
func (m *Manager) LinkVehicle(ctx context.Context, ownerID, vehicleID primitive.ObjectID) error {
	return m.users.AddVehicle(ctx, ownerID, vehicleID)
}

// UnlinkVehicle removes the vehicle from the owner's set. Removing an
// absent element is a no-op, not an error.
func (m *Manager) UnlinkVehicle(ctx context.Context, ownerID, vehicleID primitive.ObjectID) error {
	return m.users.RemoveVehicle(ctx, ownerID, vehicleID)
}

// CreateVehicle validates the attributes, enforces per-owner plate
// uniqueness, persists the vehicle and links it to its owner.
func (m *Manager) CreateVehicle(ctx context.Context, ownerID primitive.ObjectID, input models.VehicleInput) (*models.Vehicle, error) {
	if err := input.Validate(time.Now()); err != nil {
		return nil, err
	}
	if _, err := m.users.FindUserByID(ctx, ownerID); err != nil {
		return nil, err
	}

	plate := models.NormalizePlate(input.Plate)
	if err := m.checkPlateFree(ctx, ownerID, plate, primitive.NilObjectID); err != nil {
		return nil, err
	}

	vehicle := &models.Vehicle{
		Owner: ownerID,
		Make:  input.Make,
		Model: input.Model,
		Year:  input.Year,
		Plate: plate,
	}
	if err := m.vehicles.InsertVehicle(ctx, vehicle); err != nil {
		return nil, err
	}
	if err := m.LinkVehicle(ctx, ownerID, vehicle.ID); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// UpdateVehicle validates and applies attribute changes, re-checking plate
// uniqueness in the owner's scope when the plate changes.
func (m *Manager) UpdateVehicle(ctx context.Context, vehicleID primitive.ObjectID, input models.VehicleInput) (*models.Vehicle, error) {
	vehicle, err := m.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(time.Now()); err != nil {
		return nil, err
	}

	plate := models.NormalizePlate(input.Plate)
	if plate != vehicle.Plate {
		if err := m.checkPlateFree(ctx, vehicle.Owner, plate, vehicleID); err != nil {
			return nil, err
		}
	}

	err = m.vehicles.UpdateVehicle(ctx, vehicleID, bson.M{
		"make":  input.Make,
		"model": input.Model,
		"year":  input.Year,
		"plate": plate,
	})
	if err != nil {
		return nil, err
	}
	return m.vehicles.FindVehicleByID(ctx, vehicleID)
}

// CascadeDeleteVehicle deletes the vehicle's services, then removes the
// owner's back-reference, then deletes the vehicle record. The order is
// leaves first, then the edge to the parent, then the node: an interrupted
// run can leave at worst an orphaned service document, never a user
// pointing at a vanished vehicle. Every step tolerates re-execution, so
// retrying after a StoreError completes the cascade.
func (m *Manager) CascadeDeleteVehicle(ctx context.Context, vehicleID primitive.ObjectID) error {
	vehicle, err := m.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := m.services.DeleteServicesByVehicle(ctx, vehicleID); err != nil {
		return err
	}
	if err := m.UnlinkVehicle(ctx, vehicle.Owner, vehicleID); err != nil {
		return err
	}
	return m.vehicles.DeleteVehicle(ctx, vehicleID)
}

// CascadeDeleteUser cascades through every vehicle owned by the user, then
// deletes the user record itself.
func (m *Manager) CascadeDeleteUser(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := m.users.FindUserByID(ctx, userID); err != nil {
		return err
	}
	// Query by owner rather than trusting the denormalized set, so a
	// vehicle missing from the set is still cleaned up.
	vehicles, err := m.vehicles.FindVehicles(ctx, bson.M{"owner": userID})
	if err != nil {
		return err
	}
	for _, vehicle := range vehicles {
		if err := m.CascadeDeleteVehicle(ctx, vehicle.ID); err != nil {
			return err
		}
	}
	return m.users.DeleteUser(ctx, userID)
}

// TransferVehicleOwnership moves the vehicle from one owner to another with
// exactly-once membership: the vehicle is added to the new owner's set and
// repointed before it is removed from the old owner's set, so a crash
// mid-sequence leaves it visible under both owners — healed by the
// idempotent removal on retry — never under neither. Re-running the call
// after a partial failure completes the transfer.
func (m *Manager) TransferVehicleOwnership(ctx context.Context, vehicleID, fromOwnerID, toOwnerID primitive.ObjectID) error {
	vehicle, err := m.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	// A vehicle already pointing at the destination is a retry of an
	// interrupted transfer; fall through and re-run the sequence.
	if vehicle.Owner != fromOwnerID && vehicle.Owner != toOwnerID {
		return apperr.Conflictf("vehicle %s is not owned by %s", vehicleID.Hex(), fromOwnerID.Hex())
	}
	if _, err := m.users.FindUserByID(ctx, toOwnerID); err != nil {
		return err
	}
	if err := m.checkPlateFree(ctx, toOwnerID, vehicle.Plate, vehicleID); err != nil {
		return err
	}

	if err := m.LinkVehicle(ctx, toOwnerID, vehicleID); err != nil {
		return err
	}
	if err := m.vehicles.SetOwner(ctx, vehicleID, toOwnerID); err != nil {
		return err
	}
	return m.UnlinkVehicle(ctx, fromOwnerID, vehicleID)
}

// CreateService validates the attributes, persists the service and links it
// to its vehicle.
func (m *Manager) CreateService(ctx context.Context, vehicleID primitive.ObjectID, input models.ServiceInput) (*models.Service, error) {
	if err := input.Validate(time.Now()); err != nil {
		return nil, err
	}
	if _, err := m.vehicles.FindVehicleByID(ctx, vehicleID); err != nil {
		return nil, err
	}

	service := &models.Service{
		Vehicle:  vehicleID,
		Type:     input.Type,
		Date:     input.Date,
		Odometer: input.Odometer,
		Notes:    input.Notes,
	}
	if err := m.services.InsertService(ctx, service); err != nil {
		return nil, err
	}
	if err := m.vehicles.AddService(ctx, vehicleID, service.ID); err != nil {
		return nil, err
	}
	return service, nil
}

// UpdateService validates and applies attribute changes. When the service
// moves to another vehicle the new edge is added before the old one is
// removed, mirroring the ownership-transfer ordering.
func (m *Manager) UpdateService(ctx context.Context, serviceID primitive.ObjectID, newVehicleID primitive.ObjectID, input models.ServiceInput) (*models.Service, error) {
	service, err := m.services.FindServiceByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if err := input.Validate(time.Now()); err != nil {
		return nil, err
	}

	if newVehicleID != service.Vehicle {
		if _, err := m.vehicles.FindVehicleByID(ctx, newVehicleID); err != nil {
			return nil, err
		}
		if err := m.vehicles.AddService(ctx, newVehicleID, serviceID); err != nil {
			return nil, err
		}
	}

	err = m.services.UpdateService(ctx, serviceID, bson.M{
		"vehicle":  newVehicleID,
		"type":     input.Type,
		"date":     input.Date,
		"odometer": input.Odometer,
		"notes":    input.Notes,
	})
	if err != nil {
		return nil, err
	}

	if newVehicleID != service.Vehicle {
		if err := m.vehicles.RemoveService(ctx, service.Vehicle, serviceID); err != nil {
			return nil, err
		}
	}
	return m.services.FindServiceByID(ctx, serviceID)
}

// DeleteService removes the vehicle's back-reference, then deletes the
// service record. An interruption between the two steps leaves an
// unreferenced service document rather than a dangling id in the set.
func (m *Manager) DeleteService(ctx context.Context, serviceID primitive.ObjectID) error {
	service, err := m.services.FindServiceByID(ctx, serviceID)
	if err != nil {
		return err
	}
	if err := m.vehicles.RemoveService(ctx, service.Vehicle, serviceID); err != nil {
		return err
	}
	return m.services.DeleteService(ctx, serviceID)
}

// checkPlateFree enforces per-owner plate uniqueness, ignoring the vehicle
// identified by exclude (the zero id excludes nothing).
func (m *Manager) checkPlateFree(ctx context.Context, ownerID primitive.ObjectID, plate string, exclude primitive.ObjectID) error {
	existing, err := m.vehicles.FindVehicleByPlate(ctx, ownerID, plate)
	if err != nil {
		if apperr.IsStore(err) {
			return err
		}
		return nil // not found: plate is free
	}
	if existing.ID == exclude {
		return nil
	}
	return apperr.Conflictf("vehicle with plate %s already exists for this owner", plate)
}

// logViolation records an observed invariant violation; its presence
// signals a defect or a missed reconciliation, not user error.
func logViolation(iv *apperr.InvariantViolation) {
	log.WithFields(log.Fields{
		"invariant": true,
		"relation":  iv.Relation,
	}).Error(iv.Detail)
}
