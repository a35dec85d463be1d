package server

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"statshub/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	headerSessionToken = "X-Session-Token"
	headerUserID       = "X-User-ID"
)

var errMissingSession = errors.New("X-Session-Token header is required")

// AuthMiddleware creates middleware that validates API tokens and checks roles
func (s *Server) AuthMiddleware(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		token, err := s.tc.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if token.Revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			return
		}

		if len(requiredRoles) > 0 && !slices.Contains(requiredRoles, token.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		c.Set("token", token)

		c.Next()
	}
}

// sessionFromRequest reads the dashboard session the summary is resolved for.
// The role comes from the path, the marketplace token from X-Session-Token.
func sessionFromRequest(c *gin.Context) (model.Session, error) {
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		return model.Session{}, err
	}

	token := strings.TrimSpace(c.GetHeader(headerSessionToken))
	if token == "" {
		return model.Session{}, errMissingSession
	}

	return model.Session{
		Token:  token,
		UserID: strings.TrimSpace(c.GetHeader(headerUserID)),
		Role:   role,
	}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Handled request")
	}
}
