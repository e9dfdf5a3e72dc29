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

// MongoServiceStore implements ServiceStore for MongoDB
type MongoServiceStore struct {
	Collection *mongo.Collection
}

// InsertService inserts a new service record and fills in its generated id.
func (s *MongoServiceStore) InsertService(ctx context.Context, service *models.Service) error {
	now := time.Now()
	service.CreatedAt = now
	service.UpdatedAt = now
	if service.ID.IsZero() {
		service.ID = primitive.NewObjectID()
	}

	_, err := s.Collection.InsertOne(ctx, service)
	return storeErr("insert service", err)
}

// FindServiceByID finds a service record by its ID
func (s *MongoServiceStore) FindServiceByID(ctx context.Context, id primitive.ObjectID) (*models.Service, error) {
	var service models.Service
	err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&service)
	if err != nil {
		return nil, storeErr("find service "+id.Hex(), err)
	}
	return &service, nil
}

// FindServices finds service records matching the filter, most recent first.
func (s *MongoServiceStore) FindServices(ctx context.Context, filter bson.M) ([]models.Service, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find services", err)
	}
	var services []models.Service
	if err := cursor.All(ctx, &services); err != nil {
		return nil, storeErr("decode services", err)
	}
	return services, nil
}

// UpdateService sets the given fields on a service document.
func (s *MongoServiceStore) UpdateService(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := s.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return storeErr("update service", err)
	}
	if res.MatchedCount == 0 {
		return storeErr("update service "+id.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

// DeleteService deletes a service document. Deleting an already-absent
// service is a no-op so interrupted cascades can be re-run.
func (s *MongoServiceStore) DeleteService(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return storeErr("delete service", err)
}

// DeleteServicesByVehicle deletes every service referencing the vehicle.
func (s *MongoServiceStore) DeleteServicesByVehicle(ctx context.Context, vehicleID primitive.ObjectID) error {
	_, err := s.Collection.DeleteMany(ctx, bson.M{"vehicle": vehicleID})
	return storeErr("delete services of vehicle", err)
}

// CountServices counts service records matching the filter.
func (s *MongoServiceStore) CountServices(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.Collection.CountDocuments(ctx, filter)
	return n, storeErr("count services", err)
}

// AggregateServices runs an aggregation pipeline over the services collection.
func (s *MongoServiceStore) AggregateServices(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("aggregate services", err)
	}
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr("decode service aggregation", err)
	}
	return out, nil
}
