package controller

import (
	"context"
	"time"

	"statshub/internal/aws"
	"statshub/internal/cache"
	"statshub/internal/database"
	"statshub/internal/rabbitmq"
)

// ServerController reports readiness of the service's dependencies.
// Optional dependencies are nil when disabled and report healthy.
type ServerController interface {
	DBHealth() error
	CacheHealth() error
	RabbitHealth() error
	FileServiceHealth() error
	Online() string
}

type serverController struct {
	db     database.Database
	cache  cache.Cache
	rabbit rabbitmq.Client
	files  aws.FileService
}

func NewServer(db database.Database, cache cache.Cache, rabbit rabbitmq.Client, files aws.FileService) ServerController {
	return &serverController{
		db:     db,
		cache:  cache,
		rabbit: rabbit,
		files:  files,
	}
}

func (sc *serverController) Online() string {
	return "Online"
}

func (sc *serverController) DBHealth() error {
	return sc.db.Health()
}

func (sc *serverController) CacheHealth() error {
	if sc.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sc.cache.Ping(ctx)
}

func (sc *serverController) RabbitHealth() error {
	if sc.rabbit == nil {
		return nil
	}
	return sc.rabbit.Health()
}

func (sc *serverController) FileServiceHealth() error {
	if sc.files == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sc.files.TestConnection(ctx)
}
