package server

import (
	"net/http"
	"time"

	"statshub/internal/model"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.Use(cors.New(s.corsConfig()))

	r.GET("/health", s.healthHandler)
	r.GET("/online", s.onlineHandler)
	r.GET("/ready", s.readyHandler)

	stats := r.Group("/stats", s.AuthMiddleware(model.RoleService, model.RoleAdmin))
	{
		stats.GET("/:role", s.getStatsHandler)
		stats.DELETE("/:role/cache", s.invalidateStatsHandler)
		stats.POST("/:role/export", s.exportStatsHandler)
	}

	tokens := r.Group("/tokens", s.AuthMiddleware(model.RoleAdmin))
	{
		tokens.POST("", s.CreateTokenHandler)
		tokens.GET("", s.ListTokensHandler)
		tokens.GET("/:id", s.GetTokenHandler)
		tokens.DELETE("/:id", s.RevokeTokenHandler)
	}

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowOrigins:     s.config.CORS.AllowedOrigins,
		AllowMethods:     s.config.CORS.AllowedMethods,
		AllowHeaders:     s.config.CORS.AllowedHeaders,
		AllowCredentials: s.config.CORS.AllowCredentials,
		MaxAge:           time.Duration(s.config.CORS.MaxAge) * time.Second,
	}

	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = nil
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", headerSessionToken, headerUserID}
	}

	return cfg
}
