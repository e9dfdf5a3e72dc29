// Command seed loads development fixtures: an admin, a garage, a regular
// user, one vehicle and a few service records. Re-running it is safe; every
// record is looked up before being created.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/auth"
	"github.com/karhabti/karhabti-api/internal/consistency"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/models"
)

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "karhabti"
	}
	store := db.NewMongoStore(client.Database(dbName))
	manager := consistency.NewManager(store)

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("failed to create auth service")
	}

	ctx := context.Background()

	admin := ensureUser(ctx, store, authService, "admin", "admin@karhabti.com", "admin123", models.RoleAdmin, nil)
	garage := ensureUser(ctx, store, authService, "garage", "garage@karhabti.com", "garage123", models.RoleGarage, nil)
	user := ensureUser(ctx, store, authService, "testuser", "test@karhabti.com", "password123", models.RoleUser, &garage.ID)
	_ = admin

	vehicle, err := store.Vehicles.FindVehicleByPlate(ctx, user.ID, "AB-123-CD")
	if err != nil {
		if apperr.IsStore(err) {
			log.WithError(err).Fatal("failed to look up vehicle")
		}
		vehicle, err = manager.CreateVehicle(ctx, user.ID, models.VehicleInput{
			Make:  "Peugeot",
			Model: "208",
			Year:  2020,
			Plate: "AB-123-CD",
		})
		if err != nil {
			log.WithError(err).Fatal("failed to create vehicle")
		}
		log.WithField("plate", vehicle.Plate).Info("vehicle created")

		seedServices := []models.ServiceInput{
			{Type: models.ServiceOilChange, Date: time.Now().AddDate(0, -10, 0), Odometer: 45000, Notes: "Synthetic 5W-30"},
			{Type: models.ServiceBrakes, Date: time.Now().AddDate(-1, -2, 0), Odometer: 38000, Notes: "Front pads replaced"},
			{Type: models.ServiceTires, Date: time.Now().AddDate(-2, 0, 0), Odometer: 25000, Notes: ""},
		}
		for _, input := range seedServices {
			if _, err := manager.CreateService(ctx, vehicle.ID, input); err != nil {
				log.WithError(err).Fatal("failed to create service")
			}
		}
		log.WithField("count", len(seedServices)).Info("services created")
	} else {
		log.WithField("plate", vehicle.Plate).Info("vehicle already exists")
	}

	log.Info("seed complete")
}

// ensureUser finds a user by email or creates it.
func ensureUser(ctx context.Context, store *db.Store, authService *auth.Service, username, email, password string, role models.Role, garageID *primitive.ObjectID) *models.User {
	user, err := store.Users.FindUserByEmail(ctx, email)
	if err == nil {
		log.WithField("email", email).Info("user already exists")
		return user
	}
	if apperr.IsStore(err) {
		log.WithError(err).Fatal("failed to look up user")
	}

	hash, err := authService.HashPassword(password)
	if err != nil {
		log.WithError(err).Fatal("failed to hash password")
	}
	user = &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		GarageID:     garageID,
	}
	if err := store.Users.InsertUser(ctx, user); err != nil {
		log.WithError(err).Fatal("failed to create user")
	}
	log.WithFields(log.Fields{"email": email, "role": role}).Info("user created")
	return user
}
