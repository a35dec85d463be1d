package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// Token roles
	RoleAdmin   = "ADMIN"   // Can manage tokens and access all API endpoints
	RoleService = "SERVICE" // Can only access API endpoints, not token management
)

// APIToken represents a service authentication token
type APIToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TokenHash string             `bson:"token_hash" json:"-"` // Hashed token value stored in DB
	Name      string             `bson:"name" json:"name"`
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at,omitempty" json:"expires_at,omitempty"` // Optional expiration
	LastUsed  time.Time          `bson:"last_used,omitempty" json:"last_used,omitempty"`
	Revoked   bool               `bson:"revoked" json:"revoked"`
}
