// Package dbtest provides an in-memory Store implementation for tests.
// It honors the same document-level semantics as the Mongo store — set-union
// and set-removal relation edits, no-op deletes of absent records — and can
// inject store failures at a chosen point to exercise interrupted cascades.
package dbtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/karhabti/karhabti-api/internal/apperr"
	"github.com/karhabti/karhabti-api/internal/db"
	"github.com/karhabti/karhabti-api/internal/models"
)

// MemStore is an in-memory implementation of the three store interfaces.
type MemStore struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	vehicles map[primitive.ObjectID]models.Vehicle
	services map[primitive.ObjectID]models.Service

	// writesLeft counts mutating operations allowed before injected
	// failure; negative means never fail.
	writesLeft int
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:      make(map[primitive.ObjectID]models.User),
		vehicles:   make(map[primitive.ObjectID]models.Vehicle),
		services:   make(map[primitive.ObjectID]models.Service),
		writesLeft: -1,
	}
}

// Store bundles the memory store behind the db.Store interfaces.
func (m *MemStore) Store() *db.Store {
	return &db.Store{Users: m, Vehicles: m, Services: m}
}

// FailAfter allows n more mutating operations to succeed, then fails every
// subsequent one with a StoreError until ClearFailure is called.
func (m *MemStore) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writesLeft = n
}

// ClearFailure disables injected failures.
func (m *MemStore) ClearFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writesLeft = -1
}

// write gates a mutating operation on the injected-failure budget.
// Callers must hold m.mu.
func (m *MemStore) write(op string) error {
	if m.writesLeft < 0 {
		return nil
	}
	if m.writesLeft == 0 {
		return &apperr.StoreError{Op: op, Err: context.DeadlineExceeded}
	}
	m.writesLeft--
	return nil
}

// matches evaluates the subset of filter syntax the handlers and manager
// use: direct equality and $in on ObjectID-valued fields.
func matches(filter bson.M, doc bson.M) bool {
	for key, want := range filter {
		got, ok := doc[key]
		if !ok {
			return false
		}
		switch w := want.(type) {
		case bson.M:
			in, ok := w["$in"]
			if !ok {
				return false
			}
			ids, ok := in.([]primitive.ObjectID)
			if !ok {
				return false
			}
			found := false
			for _, id := range ids {
				if got == id {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if got != want {
				return false
			}
		}
	}
	return true
}

// --- UserStore ---

func (m *MemStore) InsertUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("insert user"); err != nil {
		return err
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Vehicles == nil {
		user.Vehicles = []primitive.ObjectID{}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *MemStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFoundf("user %s", id.Hex())
	}
	out := u
	out.Vehicles = append([]primitive.ObjectID(nil), u.Vehicles...)
	return &out, nil
}

func (m *MemStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, apperr.NotFoundf("user by email")
}

func (m *MemStore) FindUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		doc := bson.M{"_id": u.ID, "email": u.Email, "role": u.Role}
		if u.GarageID != nil {
			doc["garage_id"] = *u.GarageID
		}
		if matches(filter, doc) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *MemStore) UpdateUser(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("update user"); err != nil {
		return err
	}
	u, ok := m.users[id]
	if !ok {
		return apperr.NotFoundf("update user %s", id.Hex())
	}
	for key, val := range fields {
		switch key {
		case "username":
			u.Username = val.(string)
		case "email":
			u.Email = val.(string)
		case "role":
			u.Role = val.(models.Role)
		case "password_hash":
			u.PasswordHash = val.(string)
		}
	}
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return nil
}

func (m *MemStore) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("delete user"); err != nil {
		return err
	}
	delete(m.users, id)
	return nil
}

func (m *MemStore) AddVehicle(ctx context.Context, userID, vehicleID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("add vehicle to user"); err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFoundf("add vehicle to user %s", userID.Hex())
	}
	for _, id := range u.Vehicles {
		if id == vehicleID {
			return nil
		}
	}
	u.Vehicles = append(u.Vehicles, vehicleID)
	m.users[userID] = u
	return nil
}

func (m *MemStore) RemoveVehicle(ctx context.Context, userID, vehicleID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("remove vehicle from user"); err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	kept := u.Vehicles[:0]
	for _, id := range u.Vehicles {
		if id != vehicleID {
			kept = append(kept, id)
		}
	}
	u.Vehicles = kept
	m.users[userID] = u
	return nil
}

func (m *MemStore) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	users, err := m.FindUsers(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(users)), nil
}

func (m *MemStore) AggregateUsers(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	return nil, nil
}

// --- VehicleStore ---

func (m *MemStore) InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("insert vehicle"); err != nil {
		return err
	}
	now := time.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	if vehicle.Services == nil {
		vehicle.Services = []primitive.ObjectID{}
	}
	m.vehicles[vehicle.ID] = *vehicle
	return nil
}

func (m *MemStore) FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, apperr.NotFoundf("vehicle %s", id.Hex())
	}
	out := v
	out.Services = append([]primitive.ObjectID(nil), v.Services...)
	return &out, nil
}

func (m *MemStore) FindVehicles(ctx context.Context, filter bson.M) ([]models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Vehicle
	for _, v := range m.vehicles {
		doc := bson.M{"_id": v.ID, "owner": v.Owner, "plate": v.Plate, "make": v.Make}
		if matches(filter, doc) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *MemStore) FindVehicleByPlate(ctx context.Context, ownerID primitive.ObjectID, plate string) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.Owner == ownerID && v.Plate == plate {
			out := v
			return &out, nil
		}
	}
	return nil, apperr.NotFoundf("vehicle by plate")
}

func (m *MemStore) UpdateVehicle(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("update vehicle"); err != nil {
		return err
	}
	v, ok := m.vehicles[id]
	if !ok {
		return apperr.NotFoundf("update vehicle %s", id.Hex())
	}
	for key, val := range fields {
		switch key {
		case "make":
			v.Make = val.(string)
		case "model":
			v.Model = val.(string)
		case "year":
			v.Year = val.(int)
		case "plate":
			v.Plate = val.(string)
		}
	}
	v.UpdatedAt = time.Now()
	m.vehicles[id] = v
	return nil
}

func (m *MemStore) DeleteVehicle(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("delete vehicle"); err != nil {
		return err
	}
	delete(m.vehicles, id)
	return nil
}

func (m *MemStore) SetOwner(ctx context.Context, vehicleID, ownerID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("set vehicle owner"); err != nil {
		return err
	}
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return apperr.NotFoundf("set owner of vehicle %s", vehicleID.Hex())
	}
	v.Owner = ownerID
	v.UpdatedAt = time.Now()
	m.vehicles[vehicleID] = v
	return nil
}

func (m *MemStore) AddService(ctx context.Context, vehicleID, serviceID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("add service to vehicle"); err != nil {
		return err
	}
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return apperr.NotFoundf("add service to vehicle %s", vehicleID.Hex())
	}
	for _, id := range v.Services {
		if id == serviceID {
			return nil
		}
	}
	v.Services = append(v.Services, serviceID)
	m.vehicles[vehicleID] = v
	return nil
}

func (m *MemStore) RemoveService(ctx context.Context, vehicleID, serviceID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("remove service from vehicle"); err != nil {
		return err
	}
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil
	}
	kept := v.Services[:0]
	for _, id := range v.Services {
		if id != serviceID {
			kept = append(kept, id)
		}
	}
	v.Services = kept
	m.vehicles[vehicleID] = v
	return nil
}

func (m *MemStore) CountVehicles(ctx context.Context, filter bson.M) (int64, error) {
	vehicles, err := m.FindVehicles(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(vehicles)), nil
}

func (m *MemStore) AggregateVehicles(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	return nil, nil
}

// --- ServiceStore ---

func (m *MemStore) InsertService(ctx context.Context, service *models.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("insert service"); err != nil {
		return err
	}
	now := time.Now()
	service.CreatedAt = now
	service.UpdatedAt = now
	if service.ID.IsZero() {
		service.ID = primitive.NewObjectID()
	}
	m.services[service.ID] = *service
	return nil
}

func (m *MemStore) FindServiceByID(ctx context.Context, id primitive.ObjectID) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, apperr.NotFoundf("service %s", id.Hex())
	}
	out := s
	return &out, nil
}

func (m *MemStore) FindServices(ctx context.Context, filter bson.M) ([]models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Service
	for _, s := range m.services {
		doc := bson.M{"_id": s.ID, "vehicle": s.Vehicle, "type": s.Type}
		if matches(filter, doc) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (m *MemStore) UpdateService(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("update service"); err != nil {
		return err
	}
	s, ok := m.services[id]
	if !ok {
		return apperr.NotFoundf("update service %s", id.Hex())
	}
	for key, val := range fields {
		switch key {
		case "vehicle":
			s.Vehicle = val.(primitive.ObjectID)
		case "type":
			s.Type = val.(models.ServiceType)
		case "date":
			s.Date = val.(time.Time)
		case "odometer":
			s.Odometer = val.(float64)
		case "notes":
			s.Notes = val.(string)
		}
	}
	s.UpdatedAt = time.Now()
	m.services[id] = s
	return nil
}

func (m *MemStore) DeleteService(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("delete service"); err != nil {
		return err
	}
	delete(m.services, id)
	return nil
}

func (m *MemStore) DeleteServicesByVehicle(ctx context.Context, vehicleID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write("delete services of vehicle"); err != nil {
		return err
	}
	for id, s := range m.services {
		if s.Vehicle == vehicleID {
			delete(m.services, id)
		}
	}
	return nil
}

func (m *MemStore) CountServices(ctx context.Context, filter bson.M) (int64, error) {
	services, err := m.FindServices(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(services)), nil
}

func (m *MemStore) AggregateServices(ctx context.Context, pipeline mongo.Pipeline) ([]bson.M, error) {
	return nil, nil
}
