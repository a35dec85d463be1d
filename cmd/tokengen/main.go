package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"statshub/internal/config"
	"statshub/internal/controller"
	"statshub/internal/database"
	"statshub/internal/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if len(os.Args) < 4 {
		fmt.Println("Usage: tokengen <config_path> <token_name> <expires_in_days> [ADMIN|SERVICE]")
		fmt.Println("Example: tokengen config/config.json \"Initial Admin Token\" 365")
		os.Exit(1)
	}

	configPath := os.Args[1]
	tokenName := os.Args[2]
	expiresInDays, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatal().Msgf("Invalid expires_in_days value: %v", err)
	}

	role := model.RoleAdmin
	if len(os.Args) > 4 {
		role = os.Args[4]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer db.Close(context.Background())

	if err := db.Health(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping MongoDB")
	}

	var expiresAt *time.Time
	if expiresInDays > 0 {
		t := time.Now().AddDate(0, 0, expiresInDays)
		expiresAt = &t
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rawToken, token, err := controller.NewToken(db).GenerateToken(ctx, tokenName, role, expiresAt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token")
	}

	fmt.Printf("%s token created successfully!\n", token.Role)
	fmt.Println("ID:", token.ID.Hex())
	fmt.Println("Token:", rawToken)
	fmt.Println("IMPORTANT: Save this token securely. It won't be shown again.")
}
