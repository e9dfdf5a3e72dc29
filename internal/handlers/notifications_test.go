package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karhabti/karhabti-api/internal/models"
)

func TestNotificationList(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.notifications.now = func() time.Time { return now }

	alice, token := env.seedAccount(t, "alice", models.RoleUser)
	bob, _ := env.seedAccount(t, "bob", models.RoleUser)
	vehicle := env.seedVehicle(t, alice.ID, "AA-111-AA")
	theirs := env.seedVehicle(t, bob.ID, "BB-222-BB")

	// 65 days until the next oil change, 70 days past the brakes interval.
	env.seedService(t, vehicle.ID, models.ServiceOilChange, now.AddDate(0, 0, -300))
	env.seedService(t, vehicle.ID, models.ServiceBrakes, now.AddDate(0, 0, -800))
	// Fresh service: nothing due. Bob's history must not leak in.
	env.seedService(t, vehicle.ID, models.ServiceTires, now.AddDate(0, 0, -10))
	env.seedService(t, theirs.ID, models.ServiceOilChange, now.AddDate(0, 0, -300))

	rec, resp := env.do(t, http.MethodGet, "/api/notifications", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Notifications []models.Notification      `json:"notifications"`
		Count         int                        `json:"count"`
		Summary       models.NotificationSummary `json:"summary"`
	}
	decodeData(t, resp, &data)

	require.Equal(t, 2, data.Count)
	// Overdue first: high priority beats the upcoming low one.
	assert.Equal(t, models.NotificationOverdue, data.Notifications[0].Kind)
	assert.Equal(t, models.ServiceBrakes, data.Notifications[0].ServiceType)
	assert.Equal(t, 70, data.Notifications[0].DaysOverdue)
	assert.Equal(t, vehicle.ID, data.Notifications[0].Vehicle.ID)

	assert.Equal(t, models.NotificationUpcoming, data.Notifications[1].Kind)
	assert.Equal(t, models.ServiceOilChange, data.Notifications[1].ServiceType)
	assert.Equal(t, 65, data.Notifications[1].DaysUntilService)

	assert.Equal(t, models.NotificationSummary{High: 1, Low: 1}, data.Summary)
}

func TestNotificationList_NoVehicles(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedAccount(t, "alice", models.RoleUser)

	rec, resp := env.do(t, http.MethodGet, "/api/notifications", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Notifications []models.Notification `json:"notifications"`
		Count         int                   `json:"count"`
	}
	decodeData(t, resp, &data)
	assert.Equal(t, 0, data.Count)
	assert.NotNil(t, data.Notifications)
}

func TestNotificationList_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/api/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
