package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/sorewa/gatehouse/internal/config"
	"github.com/sorewa/gatehouse/internal/server"
)

func main() {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	env := config.LoadEnv()

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := server.Start(env, cfg); err != nil {
		os.Exit(1)
	}
}
