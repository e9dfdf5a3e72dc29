package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/karhabti/karhabti-api/internal/models"
)

// MongoVehicleStore implements VehicleStore for MongoDB
type MongoVehicleStore struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a new vehicle and fills in its generated id.
func (s *MongoVehicleStore) InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	now := time.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	if vehicle.Services == nil {
		vehicle.Services = []primitive.ObjectID{}
	}

	_, err := s.Collection.InsertOne(ctx, vehicle)
	return storeErr("insert vehicle", err)
}

// FindVehicleByID finds a vehicle by its ID
func (s *MongoVehicleStore) FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		return nil, storeErr("find vehicle "+id.Hex(), err)
	}
	return &vehicle, nil
}

// FindVehicles finds vehicles matching the filter, newest first.
func (s *MongoVehicleStore) FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find vehicles", err)
	}
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, storeErr("decode vehicles", err)
	}
	return vehicles, nil
}

// FindVehicleByPlate looks up a plate within one owner's scope.
func (s *MongoVehicleStore) FindVehicleByPlate(ctx context.Context, ownerID primitive.ObjectID, plate string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.Collection.FindOne(ctx, bson.M{"owner": ownerID, "plate": plate}).Decode(&vehicle)
	if err != nil {
		return nil, storeErr("find vehicle by plate", err)
	}
	return &vehicle, nil
}

// UpdateVehicle sets the given fields on a vehicle document.
func (s *MongoVehicleStore) UpdateVehicle(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := s.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return storeErr("update vehicle", err)
	}
	if res.MatchedCount == 0 {
		return storeErr("update vehicle "+id.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

// DeleteVehicle deletes a vehicle document. Deleting an already-absent
// vehicle is a no-op so interrupted cascades can be re-run.
func (s *MongoVehicleStore) DeleteVehicle(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return storeErr("delete vehicle", err)
}

// SetOwner points the vehicle's owner field at a user.
func (s *MongoVehicleStore) SetOwner(ctx context.Context, vehicleID, ownerID primitive.ObjectID) error {
	res, err := s.Collection.UpdateOne(
		ctx,
		bson.M{"_id": vehicleID},
		bson.M{"$set": bson.M{"owner": ownerID, "updated_at": time.Now()}},
	)
	if err != nil {
		return storeErr("set vehicle owner", err)
	}
	if res.MatchedCount == 0 {
		return storeErr("set owner of vehicle "+vehicleID.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

// AddService adds a service id to the vehicle's set with set-union semantics.
func (s *MongoVehicleStore) AddService(ctx context.Context, vehicleID, serviceID primitive.ObjectID) error {
	res, err := s.Collection.UpdateOne(
		ctx,
		bson.M{"_id": vehicleID},
		bson.M{
			"$addToSet": bson.M{"services": serviceID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return storeErr("add service to vehicle", err)
	}
	if res.MatchedCount == 0 {
		return storeErr("add service to vehicle "+vehicleID.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

// RemoveService removes a service id from the vehicle's set. Removing an
// absent element, or editing an already-deleted vehicle, is a no-op.
func (s *MongoVehicleStore) RemoveService(ctx context.Context, vehicleID, serviceID primitive.ObjectID) error {
	_, err := s.Collection.UpdateOne(
		ctx,
		bson.M{"_id": vehicleID},
		bson.M{
			"$pull": bson.M{"services": serviceID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	return storeErr("remove service from vehicle", err)
}

// CountVehicles counts vehicles matching the filter.
func (s *MongoVehicleStore) CountVehicles(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.Collection.CountDocuments(ctx, filter)
	return n, storeErr("count vehicles", err)
}

// AggregateVehicles runs an aggregation pipeline over the vehicles collection.
func (s *MongoVehicleStore) AggregateVehicles(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("aggregate vehicles", err)
	}
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr("decode vehicle aggregation", err)
	}
	return out, nil
}
