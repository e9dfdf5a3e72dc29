package auth

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karhabti/karhabti-api/internal/models"
)

// Actor is the authorized caller established upstream of every core
// operation: an identity plus exactly one of the three role variants.
// Handlers decide which variants an entry point accepts; the core trusts
// this context and re-derives referential validity only.
type Actor struct {
	ID       primitive.ObjectID
	Role     models.Role
	GarageID *primitive.ObjectID // set on garage-created user accounts
}

// AdminActor builds the admin variant.
func AdminActor(id primitive.ObjectID) Actor {
	return Actor{ID: id, Role: models.RoleAdmin}
}

// GarageActor builds the garage variant.
func GarageActor(id primitive.ObjectID) Actor {
	return Actor{ID: id, Role: models.RoleGarage}
}

// UserActor builds the plain-user variant.
func UserActor(id primitive.ObjectID, garageID *primitive.ObjectID) Actor {
	return Actor{ID: id, Role: models.RoleUser, GarageID: garageID}
}

// ActorFromClaims reconstructs the actor carried by validated JWT claims.
func ActorFromClaims(claims *models.Claims) (Actor, error) {
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Actor{}, ErrInvalidToken
	}
	actor := Actor{ID: id, Role: claims.Role}
	if claims.GarageID != "" {
		garageID, err := primitive.ObjectIDFromHex(claims.GarageID)
		if err != nil {
			return Actor{}, ErrInvalidToken
		}
		actor.GarageID = &garageID
	}
	return actor, nil
}

// IsAdmin reports whether the actor holds the admin variant.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// IsGarage reports whether the actor holds the garage variant.
func (a Actor) IsGarage() bool { return a.Role == models.RoleGarage }
