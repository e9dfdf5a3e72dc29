package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/karhabti/karhabti-api/internal/auth"
	"github.com/karhabti/karhabti-api/internal/consistency"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/handlers"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/models"
)

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	setupLogging()

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "karhabti"
	}
	store := db.NewMongoStore(client.Database(dbName))
	log.WithField("database", dbName).Info("connected to MongoDB")

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("failed to create auth service")
	}
	manager := consistency.NewManager(store)

	authHandler := handlers.NewAuthHandler(authService, store.Users)
	vehicleHandler := handlers.NewVehicleHandler(store, manager)
	serviceHandler := handlers.NewServiceHandler(store, manager)
	notificationHandler := handlers.NewNotificationHandler(store)
	adminHandler := handlers.NewAdminHandler(store, manager)
	garageHandler := handlers.NewGarageHandler(authService, store, manager)

	authMW := middleware.NewAuthMiddleware(authService)
	adminOnly := authMW.RequireRole(models.RoleAdmin)
	garageOnly := authMW.RequireRole(models.RoleGarage)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)

	mux.HandleFunc("GET /api/vehicles", vehicleHandler.List)
	mux.HandleFunc("POST /api/vehicles", vehicleHandler.Create)
	mux.HandleFunc("GET /api/vehicles/{id}", vehicleHandler.Get)
	mux.HandleFunc("PUT /api/vehicles/{id}", vehicleHandler.Update)
	mux.HandleFunc("DELETE /api/vehicles/{id}", vehicleHandler.Delete)

	mux.HandleFunc("GET /api/services", serviceHandler.List)
	mux.HandleFunc("POST /api/services", serviceHandler.Create)
	mux.HandleFunc("GET /api/services/{id}", serviceHandler.Get)
	mux.HandleFunc("PUT /api/services/{id}", serviceHandler.Update)
	mux.HandleFunc("DELETE /api/services/{id}", serviceHandler.Delete)

	mux.HandleFunc("GET /api/notifications", notificationHandler.List)

	mux.Handle("GET /api/admin/users", adminOnly(http.HandlerFunc(adminHandler.ListUsers)))
	mux.Handle("GET /api/admin/users/{id}", adminOnly(http.HandlerFunc(adminHandler.GetUser)))
	mux.Handle("PUT /api/admin/users/{id}", adminOnly(http.HandlerFunc(adminHandler.UpdateUser)))
	mux.Handle("DELETE /api/admin/users/{id}", adminOnly(http.HandlerFunc(adminHandler.DeleteUser)))
	mux.Handle("GET /api/admin/vehicles", adminOnly(http.HandlerFunc(adminHandler.ListVehicles)))
	mux.Handle("GET /api/admin/vehicles/{id}", adminOnly(http.HandlerFunc(adminHandler.GetVehicle)))
	mux.Handle("PUT /api/admin/vehicles/{id}", adminOnly(http.HandlerFunc(adminHandler.UpdateVehicle)))
	mux.Handle("DELETE /api/admin/vehicles/{id}", adminOnly(http.HandlerFunc(adminHandler.DeleteVehicle)))
	mux.Handle("GET /api/admin/services", adminOnly(http.HandlerFunc(adminHandler.ListServices)))
	mux.Handle("DELETE /api/admin/services/{id}", adminOnly(http.HandlerFunc(adminHandler.DeleteService)))
	mux.Handle("GET /api/admin/stats", adminOnly(http.HandlerFunc(adminHandler.Stats)))

	mux.Handle("GET /api/garage/users", garageOnly(http.HandlerFunc(garageHandler.ListUsers)))
	mux.Handle("POST /api/garage/users", garageOnly(http.HandlerFunc(garageHandler.CreateUser)))
	mux.Handle("GET /api/garage/users/{id}", garageOnly(http.HandlerFunc(garageHandler.GetUser)))
	mux.Handle("PUT /api/garage/users/{id}", garageOnly(http.HandlerFunc(garageHandler.UpdateUser)))
	mux.Handle("DELETE /api/garage/users/{id}", garageOnly(http.HandlerFunc(garageHandler.DeleteUser)))

	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := middleware.CORS(os.Getenv("CORS_ORIGIN"))(
		rateLimiter.RateLimit(300, 60)(
			authMW.Authenticate(mux)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
