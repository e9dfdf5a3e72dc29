package consistency

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
)

// CheckUserInvariants walks the user's relation graph and reports every
// observed inconsistency:
//
//   - every id in the user's vehicle set resolves to a vehicle owned by
//     that user,
//   - every id in each such vehicle's service set resolves to a service
//     referencing that vehicle.
//
// Violations are logged distinctly and returned joined; they are never
// auto-corrected. A store failure aborts the walk and is returned as-is.
func (m *Manager) CheckUserInvariants(ctx context.Context, userID primitive.ObjectID) error {
	user, err := m.users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}

	var violations []error
	report := func(relation, format string, args ...interface{}) {
		iv := &apperr.InvariantViolation{
			Relation: relation,
			Detail:   fmt.Sprintf(format, args...),
		}
		logViolation(iv)
		violations = append(violations, iv)
	}

	for _, vehicleID := range user.Vehicles {
		vehicle, err := m.vehicles.FindVehicleByID(ctx, vehicleID)
		if err != nil {
			if apperr.IsStore(err) {
				return err
			}
			report("user.vehicles", "user %s references missing vehicle %s",
				userID.Hex(), vehicleID.Hex())
			continue
		}
		if vehicle.Owner != userID {
			report("user.vehicles", "user %s references vehicle %s owned by %s",
				userID.Hex(), vehicleID.Hex(), vehicle.Owner.Hex())
			continue
		}

		for _, serviceID := range vehicle.Services {
			service, err := m.services.FindServiceByID(ctx, serviceID)
			if err != nil {
				if apperr.IsStore(err) {
					return err
				}
				report("vehicle.services", "vehicle %s references missing service %s",
					vehicleID.Hex(), serviceID.Hex())
				continue
			}
			if service.Vehicle != vehicleID {
				report("vehicle.services", "vehicle %s references service %s belonging to %s",
					vehicleID.Hex(), serviceID.Hex(), service.Vehicle.Hex())
			}
		}
	}

	return errors.Join(violations...)
}
