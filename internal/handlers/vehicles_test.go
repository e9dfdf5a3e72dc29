package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/models"
)

func TestVehicleCreate(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.seedAccount(t, "alice", models.RoleUser)

	rec, resp := env.do(t, http.MethodPost, "/api/vehicles", token, models.VehicleInput{
		Make:  "Renault",
		Model: "Clio",
		Year:  2021,
		Plate: "cd-456-ef",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var data struct {
		Vehicle models.Vehicle `json:"vehicle"`
	}
	decodeData(t, resp, &data)
	assert.Equal(t, user.ID, data.Vehicle.Owner)
	assert.Equal(t, "CD-456-EF", data.Vehicle.Plate)

	// The owner's denormalized set picked up the new id.
	owner, err := env.mem.FindUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Contains(t, owner.Vehicles, data.Vehicle.ID)
}

func TestVehicleCreate_ValidationError(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAccount(t, "alice", models.RoleUser)

	rec, resp := env.do(t, http.MethodPost, "/api/vehicles", token, models.VehicleInput{Year: 1800})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Errors)
}

func TestVehicleCreate_DuplicatePlate(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.seedAccount(t, "alice", models.RoleUser)
	env.seedVehicle(t, user.ID, "AB-123-CD")

	rec, _ := env.do(t, http.MethodPost, "/api/vehicles", token, models.VehicleInput{
		Make:  "Peugeot",
		Model: "208",
		Year:  2020,
		Plate: "ab-123-cd",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVehicleList_ScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.seedAccount(t, "alice", models.RoleUser)
	bob, _ := env.seedAccount(t, "bob", models.RoleUser)
	mine := env.seedVehicle(t, alice.ID, "AA-111-AA")
	env.seedVehicle(t, bob.ID, "BB-222-BB")
	env.seedService(t, mine.ID, models.ServiceOilChange, time.Now().AddDate(0, -1, 0))

	rec, resp := env.do(t, http.MethodGet, "/api/vehicles", aliceToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Vehicles []struct {
			models.Vehicle
			ServiceRecords []models.Service `json:"service_records"`
		} `json:"vehicles"`
		Count int `json:"count"`
	}
	decodeData(t, resp, &data)
	require.Equal(t, 1, data.Count)
	assert.Equal(t, mine.ID, data.Vehicles[0].ID)
	assert.Len(t, data.Vehicles[0].ServiceRecords, 1)
}

func TestVehicleGet_OtherOwnerIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.seedAccount(t, "alice", models.RoleUser)
	bob, _ := env.seedAccount(t, "bob", models.RoleUser)
	theirs := env.seedVehicle(t, bob.ID, "BB-222-BB")

	rec, _ := env.do(t, http.MethodGet, "/api/vehicles/"+theirs.ID.Hex(), aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVehicleGet_BadID(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAccount(t, "alice", models.RoleUser)

	rec, _ := env.do(t, http.MethodGet, "/api/vehicles/not-an-id", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/vehicles/"+primitive.NewObjectID().Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVehicleUpdate(t *testing.T) {
	env := newTestEnv(t)
	alice, token := env.seedAccount(t, "alice", models.RoleUser)
	vehicle := env.seedVehicle(t, alice.ID, "AA-111-AA")

	rec, resp := env.do(t, http.MethodPut, "/api/vehicles/"+vehicle.ID.Hex(), token, models.VehicleInput{
		Make:  "Peugeot",
		Model: "308",
		Year:  2022,
		Plate: "AA-111-AA",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Vehicle models.Vehicle `json:"vehicle"`
	}
	decodeData(t, resp, &data)
	assert.Equal(t, "308", data.Vehicle.Model)
	assert.Equal(t, 2022, data.Vehicle.Year)
}

func TestVehicleDelete_Cascades(t *testing.T) {
	env := newTestEnv(t)
	alice, token := env.seedAccount(t, "alice", models.RoleUser)
	vehicle := env.seedVehicle(t, alice.ID, "AA-111-AA")
	service := env.seedService(t, vehicle.ID, models.ServiceBrakes, time.Now().AddDate(0, -3, 0))

	rec, _ := env.do(t, http.MethodDelete, "/api/vehicles/"+vehicle.ID.Hex(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	_, err := env.mem.FindVehicleByID(ctx, vehicle.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = env.mem.FindServiceByID(ctx, service.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	owner, err := env.mem.FindUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, owner.Vehicles)
}

func TestVehicleEndpoints_RequireAuth(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/api/vehicles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
