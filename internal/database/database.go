package database

import (
	"context"
	"fmt"
	"time"

	"statshub/internal/config"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Database interface {
	Health() error
	Close(context.Context) error
	TokenDatabase
}

type mongoDB struct {
	client    *mongo.Client
	db        *mongo.Database
	tokensCol *mongo.Collection
}

func New(config *config.Config) (Database, error) {
	clientOptions := options.Client().ApplyURI(config.MongoDB.URI)
	if config.MongoDB.Username != "" {
		clientOptions.SetAuth(options.Credential{
			Username: config.MongoDB.Username,
			Password: config.MongoDB.Password,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := client.Database(config.MongoDB.DB)

	tokensCol := db.Collection("tokens")
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := tokensCol.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Str("collection", "tokens").Msg("Error creating indexes")
	}

	log.Info().
		Str("db", config.MongoDB.DB).
		Msg("MongoDB connection established")

	return &mongoDB{
		client:    client,
		db:        db,
		tokensCol: tokensCol,
	}, nil
}

// Health implements Database interface
func (m *mongoDB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := m.client.Ping(ctx, nil); err != nil {
		log.Error().Err(err).Msg("Database health error")
		return err
	}

	return nil
}

func (m *mongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
