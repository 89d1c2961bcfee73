package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sorewa/gatehouse/internal/cli"
	"github.com/sorewa/gatehouse/internal/cli/device"
	"github.com/sorewa/gatehouse/internal/cli/tokens"
	"github.com/sorewa/gatehouse/internal/cli/users"
)

func main() {
	_ = godotenv.Load()

	registry := cli.NewRegistry()

	registry.Register(&tokens.Command{})
	registry.Register(&users.Command{})
	registry.Register(&device.Command{})

	if err := registry.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
