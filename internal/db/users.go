package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/karhabti/karhabti-api/internal/models"
)

// MongoUserStore implements UserStore for MongoDB
type MongoUserStore struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new user and fills in its generated id.
func (s *MongoUserStore) InsertUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Vehicles == nil {
		user.Vehicles = []primitive.ObjectID{}
	}

	_, err := s.Collection.InsertOne(ctx, user)
	return storeErr("insert user", err)
}

// FindUserByID finds a user by their ID
func (s *MongoUserStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, storeErr("find user "+id.Hex(), err)
	}
	return &user, nil
}

// FindUserByEmail finds a user by their email
func (s *MongoUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.Collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, storeErr("find user by email", err)
	}
	return &user, nil
}

// FindUsers finds users matching the filter.
func (s *MongoUserStore) FindUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	cursor, err := s.Collection.Find(ctx, filter)
	if err != nil {
		return nil, storeErr("find users", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, storeErr("decode users", err)
	}
	return users, nil
}

// UpdateUser sets the given fields on a user document.
func (s *MongoUserStore) UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	res, err := s.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return storeErr("update user", err)
	}
	if res.MatchedCount == 0 {
		return storeErr("update user "+id.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

// DeleteUser deletes a user document. Deleting an already-absent user is a
// no-op so interrupted cascades can be re-run.
func (s *MongoUserStore) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return storeErr("delete user", err)
}

// AddVehicle adds a vehicle id to the user's set with set-union semantics.
func (s *MongoUserStore) AddVehicle(ctx context.Context, userID, vehicleID primitive.ObjectID) error {
	res, err := s.Collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"vehicles": vehicleID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return storeErr("add vehicle to user", err)
	}
	if res.MatchedCount == 0 {
		return storeErr("add vehicle to user "+userID.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

// RemoveVehicle removes a vehicle id from the user's set. Removing an
// absent element, or editing an already-deleted user, is a no-op.
func (s *MongoUserStore) RemoveVehicle(ctx context.Context, userID, vehicleID primitive.ObjectID) error {
	_, err := s.Collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{
			"$pull": bson.M{"vehicles": vehicleID},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	return storeErr("remove vehicle from user", err)
}

// CountUsers counts users matching the filter.
func (s *MongoUserStore) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.Collection.CountDocuments(ctx, filter)
	return n, storeErr("count users", err)
}

// AggregateUsers runs an aggregation pipeline over the users collection.
func (s *MongoUserStore) AggregateUsers(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storeErr("aggregate users", err)
	}
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, storeErr("decode user aggregation", err)
	}
	return out, nil
}
