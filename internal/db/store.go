package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/karhabti/karhabti-api/internal/models"
)

// The store interfaces expose the document-level operations the core builds
// on: per-record create/find/update/delete, set edits on the denormalized
// relation fields, counts and aggregations. Each operation is atomic on one
// document; no multi-document transaction is assumed anywhere above this
// layer.
//
// Relation-edit semantics the consistency manager relies on:
//   - AddVehicle / AddService use set-union ($addToSet): re-applying an edit
//     has no additional effect.
//   - RemoveVehicle / RemoveService use set-removal ($pull): removing an
//     absent element, or editing an already-deleted parent, is a no-op.
//   - DeleteUser / DeleteVehicle / DeleteService are no-ops when the record
//     is already gone, so interrupted cascades can be re-run to completion.

// UserStore defines the document operations on the users collection.
type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, filter bson.M) ([]models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
	AddVehicle(ctx context.Context, userID, vehicleID primitive.ObjectID) error
	RemoveVehicle(ctx context.Context, userID, vehicleID primitive.ObjectID) error
	CountUsers(ctx context.Context, filter bson.M) (int64, error)
	AggregateUsers(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error)
}

// VehicleStore defines the document operations on the vehicles collection.
type VehicleStore interface {
	InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error
	FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error)
	FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error)
	// FindVehicleByPlate looks up a plate within one owner's scope.
	FindVehicleByPlate(ctx context.Context, ownerID primitive.ObjectID, plate string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	DeleteVehicle(ctx context.Context, id primitive.ObjectID) error
	SetOwner(ctx context.Context, vehicleID, ownerID primitive.ObjectID) error
	AddService(ctx context.Context, vehicleID, serviceID primitive.ObjectID) error
	RemoveService(ctx context.Context, vehicleID, serviceID primitive.ObjectID) error
	CountVehicles(ctx context.Context, filter bson.M) (int64, error)
	AggregateVehicles(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error)
}

// ServiceStore defines the document operations on the services collection.
type ServiceStore interface {
	InsertService(ctx context.Context, service *models.Service) error
	FindServiceByID(ctx context.Context, id primitive.ObjectID) (*models.Service, error)
	FindServices(ctx context.Context, filter bson.M) ([]models.Service, error)
	UpdateService(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	DeleteService(ctx context.Context, id primitive.ObjectID) error
	DeleteServicesByVehicle(ctx context.Context, vehicleID primitive.ObjectID) error
	CountServices(ctx context.Context, filter bson.M) (int64, error)
	AggregateServices(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error)
}

// Store bundles the per-collection stores.
type Store struct {
	Users    UserStore
	Vehicles VehicleStore
	Services ServiceStore
}
