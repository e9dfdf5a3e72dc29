package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/karhabti/karhabti-api/internal/apperr"
)

const (
	usersCollection    = "users"
	vehiclesCollection = "vehicles"
	servicesCollection = "services"
)

// ConnectMongo connects to MongoDB using the MONGO_URI environment variable.
func ConnectMongo() (*mongo.Client, error) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// NewMongoStore builds a Store backed by the named database.
func NewMongoStore(database *mongo.Database) *Store {
	return &Store{
		Users:    &MongoUserStore{Collection: database.Collection(usersCollection)},
		Vehicles: &MongoVehicleStore{Collection: database.Collection(vehiclesCollection)},
		Services: &MongoServiceStore{Collection: database.Collection(servicesCollection)},
	}
}

// storeErr translates a driver failure into the shared taxonomy: a missing
// document is apperr.ErrNotFound, anything else is an opaque StoreError.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFoundf("%s", op)
	}
	return &apperr.StoreError{Op: op, Err: err}
}
