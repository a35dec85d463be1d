package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statshub/internal/aws"
	"statshub/internal/cache"
	"statshub/internal/config"
	"statshub/internal/controller"
	"statshub/internal/database"
	"statshub/internal/rabbitmq"
	"statshub/internal/server"
	"statshub/internal/stats"
	"statshub/pkg/marketplace"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Logging)
	log.Info().Str("env", cfg.Env).Msg("Starting statshub")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close database connection")
		}
	}()

	var summaryCache cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize redis cache connection")
		}
		summaryCache = redisCache
	} else {
		log.Warn().Msg("Redis disabled, caching summaries in memory")
		summaryCache = cache.NewMemoryCache()
	}
	defer summaryCache.Close()

	var rabbit rabbitmq.Client
	var publisher controller.EventPublisher = controller.NoopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rabbit, err = rabbitmq.NewClientFromConfig(cfg.RabbitMQ)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer rabbit.Close()

		if err := rabbitmq.SetupTopology(rabbit, cfg.RabbitMQ); err != nil {
			log.Fatal().Err(err).Msg("Failed to set up RabbitMQ topology")
		}
		if cfg.Stats.PublishEvents {
			publisher = controller.NewRabbitPublisher(rabbit, cfg.RabbitMQ)
		}
	}

	var files aws.FileService
	if cfg.AWS.Enabled {
		files, err = aws.NewFileService(ctx, cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 file service")
		}
	}

	client := marketplace.New(cfg.Marketplace.BaseURL, time.Duration(cfg.Marketplace.TimeoutSeconds)*time.Second)
	aggregator := stats.NewAggregator(stats.StatusClassifier{SeparatePending: cfg.Stats.SeparatePending})
	fetcher := stats.NewFetcher(client, aggregator, time.Duration(cfg.Stats.SourceTimeoutSeconds)*time.Second)
	catalogue := stats.NewCatalogue(cfg.Marketplace.Endpoints)

	statsController := controller.NewStatsController(
		fetcher,
		catalogue,
		summaryCache,
		publisher,
		files,
		time.Duration(cfg.Stats.CacheMinutes)*time.Minute,
	)

	httpServer := server.New(
		*cfg,
		controller.NewServer(db, summaryCache, rabbit, files),
		controller.NewToken(db),
		statsController,
	)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	if rabbit != nil {
		group.Go(func() error {
			return controller.ConsumeInvalidations(ctx, rabbit, cfg.RabbitMQ.InvalidateQueue, statsController)
		})
	}

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("statshub stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("statshub stopped")
}

func setupLogger(config config.LoggingConfig) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch config.Format {
	case "json":
		// JSON is the default for zerolog
	case "console", "combined":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Logger = log.With().Timestamp().Logger()
}
