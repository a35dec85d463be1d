package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthHandler(c *gin.Context) {
	if err := s.sc.DBHealth(); err != nil {
		c.String(http.StatusInternalServerError, "Database unreachable")
		return
	}

	c.String(http.StatusOK, "Healthy")
}

// readyHandler fails only on the dependencies stats cannot be served without
func (s *Server) readyHandler(c *gin.Context) {
	dbErr := s.sc.DBHealth()
	cacheErr := s.sc.CacheHealth()
	rabbitErr := s.sc.RabbitHealth()
	fsErr := s.sc.FileServiceHealth()

	res := gin.H{
		"database":     dbErr == nil,
		"cache":        cacheErr == nil,
		"rabbit":       rabbitErr == nil,
		"file_service": fsErr == nil,
	}

	if dbErr != nil || cacheErr != nil {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) onlineHandler(c *gin.Context) {
	c.String(http.StatusOK, s.sc.Online())
}
