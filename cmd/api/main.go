package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/degap/degap-api/internal/auth"
	"github.com/degap/degap-api/internal/config"
	"github.com/degap/degap-api/internal/handler"
	"github.com/degap/degap-api/internal/mailer"
	"github.com/degap/degap-api/internal/provider"
	"github.com/degap/degap-api/internal/repository"
	"github.com/degap/degap-api/internal/usecase"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.MongoDB)

	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)

	codec := auth.NewTokenCodec(
		cfg.Token.Issuer,
		cfg.Token.AccessSecret,
		cfg.Token.RefreshSecret,
		cfg.Token.AccessExpiresIn,
		cfg.Token.RefreshExpiresIn,
	)

	mail := mailer.NewMailer(cfg.SMTP, &logger)

	sessionUsecase := usecase.NewSessionUsecase(userRepo, codec, &logger, &cfg.Token)
	authUsecase := usecase.NewAuthUsecase(userRepo, sessionUsecase, mail, &logger, cfg)
	oauthUsecase := usecase.NewOAuthUsecase(userRepo, &logger)

	providers := buildProviderRegistry(cfg, &logger)

	authMiddleware := handler.NewAuthMiddleware(codec, userRepo, &logger)
	authHandler := handler.NewAuthHandler(
		authUsecase,
		sessionUsecase,
		oauthUsecase,
		providers,
		userRepo,
		&logger,
		cfg,
	)

	router := handler.NewRouter(cfg, &logger, authHandler, authMiddleware)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Str("env", cfg.Environment).Msg("API listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildProviderRegistry wires every external identity provider that has
// credentials configured. Missing credentials disable the provider with a
// warning instead of failing startup.
func buildProviderRegistry(cfg *config.Config, logger *zerolog.Logger) *provider.Registry {
	var providers []provider.Provider

	if cfg.OAuth.Google.ClientID != "" && cfg.OAuth.Google.ClientSecret != "" {
		providers = append(providers, provider.NewGoogleProvider(
			cfg.OAuth.Google.ClientID,
			cfg.OAuth.Google.ClientSecret,
			cfg.BackendURL+"/api/auth/google/callback",
		))
	} else {
		logger.Warn().Msg("Google OAuth credentials not configured; Google login disabled")
	}

	if cfg.OAuth.GitHub.ClientID != "" && cfg.OAuth.GitHub.ClientSecret != "" {
		providers = append(providers, provider.NewGitHubProvider(
			cfg.OAuth.GitHub.ClientID,
			cfg.OAuth.GitHub.ClientSecret,
			cfg.BackendURL+"/api/auth/github/callback",
		))
	} else {
		logger.Warn().Msg("GitHub OAuth credentials not configured; GitHub login disabled")
	}

	return provider.NewRegistry(providers...)
}
