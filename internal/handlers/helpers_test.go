package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/auth"
	"github.com/karhabti/karhabti-api/internal/consistency"
	"github.com/karhabti/karhabti-api/internal/db/dbtest"
	"github.com/karhabti/karhabti-api/internal/middleware"
	"github.com/karhabti/karhabti-api/internal/models"
)

// testEnv wires the full request stack over an in-memory store.
type testEnv struct {
	mem           *dbtest.MemStore
	auth          *auth.Service
	manager       *consistency.Manager
	notifications *NotificationHandler
	handler       http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := dbtest.NewMemStore()
	store := mem.Store()
	authService, err := auth.NewService()
	require.NoError(t, err)
	manager := consistency.NewManager(store)

	authHandler := NewAuthHandler(authService, store.Users)
	vehicleHandler := NewVehicleHandler(store, manager)
	serviceHandler := NewServiceHandler(store, manager)
	notificationHandler := NewNotificationHandler(store)
	adminHandler := NewAdminHandler(store, manager)
	garageHandler := NewGarageHandler(authService, store, manager)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	adminOnly := authMiddleware.RequireRole(models.RoleAdmin)
	garageOnly := authMiddleware.RequireRole(models.RoleGarage)

	mux := http.NewServeMux()
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

	return &testEnv{
		mem:           mem,
		auth:          authService,
		manager:       manager,
		notifications: notificationHandler,
		handler:       authMiddleware.Authenticate(mux),
	}
}

// seedAccount inserts a user with the given role and returns it alongside a
// valid token.
func (e *testEnv) seedAccount(t *testing.T, username string, role models.Role) (*models.User, string) {
	t.Helper()

	hash, err := e.auth.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, e.mem.InsertUser(context.Background(), user))

	token, err := e.auth.GenerateToken(user)
	require.NoError(t, err)
	return user, token
}

// seedGarageUser inserts a plain user bound to the given garage.
func (e *testEnv) seedGarageUser(t *testing.T, username string, garageID primitive.ObjectID) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     models.RoleUser,
		GarageID: &garageID,
	}
	require.NoError(t, e.mem.InsertUser(context.Background(), user))
	return user
}

func (e *testEnv) seedVehicle(t *testing.T, ownerID primitive.ObjectID, plate string) *models.Vehicle {
	t.Helper()
	vehicle, err := e.manager.CreateVehicle(context.Background(), ownerID, models.VehicleInput{
		Make:  "Peugeot",
		Model: "208",
		Year:  2020,
		Plate: plate,
	})
	require.NoError(t, err)
	return vehicle
}

func (e *testEnv) seedService(t *testing.T, vehicleID primitive.ObjectID, serviceType models.ServiceType, date time.Time) *models.Service {
	t.Helper()
	service, err := e.manager.CreateService(context.Background(), vehicleID, models.ServiceInput{
		Type:     serviceType,
		Date:     date,
		Odometer: 42000,
	})
	require.NoError(t, err)
	return service
}

// testResponse mirrors the response envelope with the payload left raw.
type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

// do runs one request through the full middleware chain.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp testResponse
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData(t *testing.T, resp testResponse, dst interface{}) {
	t.Helper()
	require.NotEmpty(t, resp.Data)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}
