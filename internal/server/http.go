package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sorewa/gatehouse/internal/cache"
	"github.com/sorewa/gatehouse/internal/config"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/domain/auth"
	"github.com/sorewa/gatehouse/internal/domain/session"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/domain/user"
	"github.com/sorewa/gatehouse/internal/feed"
	"github.com/sorewa/gatehouse/internal/migrations"
	"github.com/sorewa/gatehouse/internal/push"
	"github.com/sorewa/gatehouse/internal/sessionstore"
)

// Start initializes and starts the HTTP server
func Start(env *config.Environment, cfg *config.Config) error {
	initLogger(cfg.Logging.Level)

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return err
	}
	slog.Info("Database connected successfully")

	if err := migrations.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return err
	}
	slog.Info("Migrations completed successfully")

	redisClient, err := cache.Connect(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		return err
	}

	signKey, err := config.LoadRSAPrivateKey(env.PrivateKey, env.Environment)
	if err != nil {
		slog.Error("Failed to load signing key", "error", err)
		return err
	}

	changeFeed := feed.New(cfg.Database.DSN())
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go func() {
		if err := changeFeed.Run(feedCtx); err != nil && feedCtx.Err() == nil {
			slog.Error("Change feed stopped", "error", err)
		}
	}()

	userRepo := user.NewRepository(db)
	tokenRepo := token.NewRepository(db)
	sessionRepo := session.NewRepository(db)

	registry := session.NewRegistry(sessionRepo, cfg.Session.StoreTimeout())
	tokenService := token.NewService(tokenRepo)
	userService := user.NewService(userRepo, tokenService, registry)

	store := sessionstore.NewRedisStore(redisClient)
	signer := auth.NewSigner(signKey, cfg.App.Name, cfg.Session.TokenTTL())
	authService := auth.NewService(userRepo, tokenService, registry, store, signer, cfg.Admin)

	gateway := push.NewGateway(signer, store, authService, changeFeed, cfg.Session.PollInterval())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	SetupRoutes(app, &Routes{
		Auth:          auth.NewHandler(authService),
		Tokens:        token.NewHandler(tokenService),
		Users:         user.NewHandler(userService),
		Push:          gateway,
		Signer:        signer,
		AdminUsername: cfg.Admin.Username,
	})

	addr := cfg.Server.Address()
	slog.Info("Server starting", "address", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

func initLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(handler))
}
