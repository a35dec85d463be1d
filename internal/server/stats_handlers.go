package server

import (
	"errors"
	"net/http"

	"statshub/internal/controller"
	"statshub/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func sessionError(c *gin.Context, err error) {
	if errors.Is(err, model.ErrInvalidRole) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be client or inspector"})
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
}

// getStatsHandler always answers with a summary. Callers that cannot use
// placeholder zeros pass strict=true to get a 503 instead.
func (s *Server) getStatsHandler(c *gin.Context) {
	session, err := sessionFromRequest(c)
	if err != nil {
		sessionError(c, err)
		return
	}

	summary, err := s.stats.GetSummary(c.Request.Context(), session)
	if errors.Is(err, model.ErrInvalidRole) {
		sessionError(c, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("role", string(session.Role)).Msg("Stats request ended before a summary was ready")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stats are not available right now"})
		return
	}

	if summary.Availability == model.Unavailable && c.Query("strict") == "true" {
		c.JSON(http.StatusServiceUnavailable, summary)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) invalidateStatsHandler(c *gin.Context) {
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		sessionError(c, err)
		return
	}

	subject := c.GetHeader(headerUserID)
	if subject == "" {
		if token := c.GetHeader(headerSessionToken); token != "" {
			subject = controller.Subject(model.Session{Token: token, Role: role})
		}
	}
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID or X-Session-Token header is required"})
		return
	}

	if err := s.stats.Invalidate(c.Request.Context(), role, subject); err != nil {
		log.Error().Err(err).Str("role", string(role)).Msg("Failed to invalidate stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Stats cache cleared"})
}

func (s *Server) exportStatsHandler(c *gin.Context) {
	session, err := sessionFromRequest(c)
	if err != nil {
		sessionError(c, err)
		return
	}

	url, err := s.stats.Export(c.Request.Context(), session)
	if err != nil {
		switch {
		case errors.Is(err, controller.ErrExportsDisabled):
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		case errors.Is(err, model.ErrInvalidRole):
			sessionError(c, err)
		default:
			log.Error().Err(err).Str("role", string(session.Role)).Msg("Failed to export stats")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to export stats"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}
