package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"statshub/internal/config"
	"statshub/internal/model"
	"statshub/internal/stats"
	"statshub/pkg/marketplace"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// statsprobe resolves one summary straight from the marketplace backend,
// bypassing cache and events. Useful to see which source answers.
func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON config file")
	roleName := flag.String("role", "client", "client or inspector")
	token := flag.String("token", os.Getenv("STATSHUB_SESSION_TOKEN"), "marketplace session token")
	userID := flag.String("user", "", "marketplace user id")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	role, err := model.ParseRole(*roleName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid role")
	}
	if *token == "" {
		log.Fatal().Msg("A session token is required (-token or STATSHUB_SESSION_TOKEN)")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	client := marketplace.New(cfg.Marketplace.BaseURL, time.Duration(cfg.Marketplace.TimeoutSeconds)*time.Second)
	aggregator := stats.NewAggregator(stats.StatusClassifier{SeparatePending: cfg.Stats.SeparatePending})
	fetcher := stats.NewFetcher(client, aggregator, time.Duration(cfg.Stats.SourceTimeoutSeconds)*time.Second)

	sources, err := stats.NewCatalogue(cfg.Marketplace.Endpoints).For(role)
	if err != nil {
		log.Fatal().Err(err).Msg("No sources for role")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary := fetcher.Resolve(ctx, model.Session{Token: *token, UserID: *userID, Role: role}, sources)

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode summary")
	}
	fmt.Println(string(out))

	if summary.Availability == model.Unavailable {
		os.Exit(2)
	}
}
