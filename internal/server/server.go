package server

import (
	"fmt"
	"net/http"
	"time"

	"statshub/internal/config"
	"statshub/internal/controller"
)

type Server struct {
	sc     controller.ServerController
	tc     controller.TokenController
	stats  controller.StatsController
	config config.Config
}

func New(config config.Config, sc controller.ServerController, tc controller.TokenController, stats controller.StatsController) *http.Server {
	server := Server{
		sc:     sc,
		tc:     tc,
		stats:  stats,
		config: config,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%v", config.Port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
