package server

import (
	"errors"
	"net/http"
	"time"

	"statshub/internal/controller"
	"statshub/internal/database"
	"statshub/internal/model"

	"github.com/gin-gonic/gin"
)

// TokenRequest names a new token. Role defaults to SERVICE.
type TokenRequest struct {
	Name          string `json:"name" binding:"required"`
	Role          string `json:"role"`
	ExpiresInDays int    `json:"expiresInDays"`
}

// TokenResponse represents the response for token operations
type TokenResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	LastUsed  time.Time  `json:"lastUsed"`
	Revoked   bool       `json:"revoked"`
}

// TokenWithStringResponse includes the raw token, shown only at creation
type TokenWithStringResponse struct {
	Token string        `json:"token"`
	Info  TokenResponse `json:"info"`
}

func toTokenResponse(token model.APIToken) TokenResponse {
	var expiresAt *time.Time
	if !token.ExpiresAt.IsZero() {
		expiresAt = &token.ExpiresAt
	}

	return TokenResponse{
		ID:        token.ID.Hex(),
		Name:      token.Name,
		Role:      token.Role,
		CreatedAt: token.CreatedAt,
		ExpiresAt: expiresAt,
		LastUsed:  token.LastUsed,
		Revoked:   token.Revoked,
	}
}

func tokenError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, controller.ErrInvalidTokenID), errors.Is(err, controller.ErrUnknownRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
	case errors.Is(err, controller.ErrTokenNameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action + " token: " + err.Error()})
	}
}

// CreateTokenHandler creates a new token with the provided name
func (s *Server) CreateTokenHandler(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := req.Role
	if role == "" {
		role = model.RoleService
	}

	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	tokenString, token, err := s.tc.GenerateToken(c.Request.Context(), req.Name, role, expiresAt)
	if err != nil {
		tokenError(c, "generate", err)
		return
	}

	c.JSON(http.StatusCreated, TokenWithStringResponse{
		Token: tokenString,
		Info:  toTokenResponse(*token),
	})
}

// ListTokensHandler returns a list of all tokens
func (s *Server) ListTokensHandler(c *gin.Context) {
	tokens, err := s.tc.ListTokens(c.Request.Context())
	if err != nil {
		tokenError(c, "list", err)
		return
	}

	response := make([]TokenResponse, 0, len(tokens))
	for _, token := range tokens {
		response = append(response, toTokenResponse(token))
	}

	c.JSON(http.StatusOK, response)
}

// GetTokenHandler returns a specific token by ID
func (s *Server) GetTokenHandler(c *gin.Context) {
	token, err := s.tc.GetTokenByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		tokenError(c, "get", err)
		return
	}

	c.JSON(http.StatusOK, toTokenResponse(*token))
}

// RevokeTokenHandler revokes a token
func (s *Server) RevokeTokenHandler(c *gin.Context) {
	if err := s.tc.RevokeToken(c.Request.Context(), c.Param("id")); err != nil {
		tokenError(c, "revoke", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token revoked successfully"})
}
