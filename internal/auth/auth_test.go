package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService()
	require.NoError(t, err)
	return service
}

func testUser() *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Username: "alice",
		Email:    "alice@example.com",
		Role:     models.RoleUser,
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	service := newTestService(t)

	hash, err := service.HashPassword("correct-horse-battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery", hash)

	assert.True(t, service.CheckPassword("correct-horse-battery", hash))
	assert.False(t, service.CheckPassword("wrong-password", hash))
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := newTestService(t)
	user := testUser()

	token, err := service.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Empty(t, claims.GarageID)
}

func TestGenerateToken_CarriesGarageID(t *testing.T) {
	service := newTestService(t)
	garageID := primitive.NewObjectID()
	user := testUser()
	user.GarageID = &garageID

	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, garageID.Hex(), claims.GarageID)
}

func TestValidateToken_Invalid(t *testing.T) {
	service := newTestService(t)

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	service := newTestService(t)
	service.tokenExp = -time.Hour

	token, err := service.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	service := newTestService(t)
	other := &Service{jwtSecret: []byte("a-different-secret"), tokenExp: time.Hour}

	token, err := other.GenerateToken(testUser())
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_BearerPrefixTolerated(t *testing.T) {
	service := newTestService(t)

	token, err := service.GenerateToken(testUser())
	require.NoError(t, err)

	claims, err := service.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.UserID)
}

func TestExtractTokenFromHeader(t *testing.T) {
	service := newTestService(t)

	token, err := service.ExtractTokenFromHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	for _, header := range []string{"", "abc.def.ghi", "Basic abc", "Bearer ", "Bearer a b"} {
		_, err := service.ExtractTokenFromHeader(header)
		assert.ErrorIs(t, err, ErrInvalidToken, "header %q", header)
	}
}

func TestValidatePassword(t *testing.T) {
	service := newTestService(t)
	assert.NoError(t, service.ValidatePassword("longenough"))
	assert.Error(t, service.ValidatePassword("short"))
}

func TestValidateEmail(t *testing.T) {
	service := newTestService(t)
	assert.NoError(t, service.ValidateEmail("alice@example.com"))
	assert.Error(t, service.ValidateEmail("alice"))
	assert.Error(t, service.ValidateEmail("alice@nodot"))
}

func TestValidateUsername(t *testing.T) {
	service := newTestService(t)
	assert.NoError(t, service.ValidateUsername("alice"))
	assert.Error(t, service.ValidateUsername("ab"))
}
