package controller

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"statshub/internal/database"
	"statshub/internal/model"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenController defines the contract for service token operations
type TokenController interface {
	// GenerateToken creates a new token with the specified name, role and optional expiry
	GenerateToken(ctx context.Context, name, role string, expiresAt *time.Time) (string, *model.APIToken, error)

	// VerifyToken checks if a token is valid and returns its details
	VerifyToken(ctx context.Context, raw string) (*model.APIToken, error)

	ListTokens(ctx context.Context) ([]model.APIToken, error)

	// RevokeToken disables a token by ID
	RevokeToken(ctx context.Context, id string) error

	GetTokenByID(ctx context.Context, id string) (*model.APIToken, error)

	// GenerateInitialAdminToken creates the first admin token in the system
	GenerateInitialAdminToken(ctx context.Context, appName string) (string, error)
}

var (
	// ErrTokenNameTaken is returned when a token with the same name exists
	ErrTokenNameTaken = errors.New("token name already in use")
	ErrInvalidTokenID = errors.New("invalid token ID format")
	ErrUnknownRole    = errors.New("unknown token role")
)

type tokenController struct {
	db database.TokenDatabase
}

// NewToken creates a new token controller
func NewToken(db database.TokenDatabase) TokenController {
	return &tokenController{
		db: db,
	}
}

// HashToken returns the stored form of a raw token
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateToken creates a new secure token
func (s *tokenController) GenerateToken(ctx context.Context, name, role string, expiresAt *time.Time) (string, *model.APIToken, error) {
	if role != model.RoleAdmin && role != model.RoleService {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	if existing, err := s.db.GetTokenByName(ctx, name); err == nil && existing != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrTokenNameTaken, name)
	} else if err != nil && !errors.Is(err, database.ErrTokenNotFound) {
		return "", nil, err
	}

	// Hash collisions are retried a few times
	for attempts := 0; attempts < 3; attempts++ {
		rawToken := make([]byte, 32)
		if _, err := rand.Read(rawToken); err != nil {
			return "", nil, fmt.Errorf("failed to generate random token: %w", err)
		}

		tokenString := hex.EncodeToString(rawToken)

		now := time.Now()
		token := &model.APIToken{
			ID:        primitive.NewObjectID(),
			TokenHash: HashToken(tokenString),
			Name:      name,
			Role:      role,
			CreatedAt: now,
			LastUsed:  now,
		}
		if expiresAt != nil {
			token.ExpiresAt = *expiresAt
		}

		err := s.db.CreateToken(ctx, token)
		if errors.Is(err, database.ErrDuplicateToken) {
			log.Warn().Msg("Token hash collision detected, retrying generation")
			continue
		}
		if err != nil {
			return "", nil, err
		}

		return tokenString, token, nil
	}

	return "", nil, fmt.Errorf("failed to generate a unique token after multiple attempts")
}

func (s *tokenController) VerifyToken(ctx context.Context, raw string) (*model.APIToken, error) {
	return s.db.VerifyToken(ctx, HashToken(raw))
}

func (s *tokenController) ListTokens(ctx context.Context) ([]model.APIToken, error) {
	return s.db.ListTokens(ctx)
}

func (s *tokenController) RevokeToken(ctx context.Context, tokenID string) error {
	id, err := primitive.ObjectIDFromHex(tokenID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTokenID, err)
	}

	return s.db.RevokeToken(ctx, id)
}

func (s *tokenController) GetTokenByID(ctx context.Context, tokenID string) (*model.APIToken, error) {
	id, err := primitive.ObjectIDFromHex(tokenID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenID, err)
	}

	return s.db.GetTokenByID(ctx, id)
}

// GenerateInitialAdminToken creates the first admin token in the system.
// It expires after one year.
func (s *tokenController) GenerateInitialAdminToken(ctx context.Context, appName string) (string, error) {
	expiresAt := time.Now().AddDate(1, 0, 0)

	tokenString, token, err := s.GenerateToken(ctx, fmt.Sprintf("%s - Admin Token", appName), model.RoleAdmin, &expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to generate initial admin token: %w", err)
	}

	log.Info().
		Str("tokenID", token.ID.Hex()).
		Str("name", token.Name).
		Time("expiresAt", token.ExpiresAt).
		Msg("Initial admin token created")

	return tokenString, nil
}
