package tokens

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sorewa/gatehouse/internal/config"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/migrations"
)

// Command implements invitation token management
type Command struct{}

func (c *Command) Name() string {
	return "token"
}

func (c *Command) Description() string {
	return "Manage invitation tokens (create, list, revoke)"
}

func (c *Command) Run(args []string) error {
	if len(args) < 1 {
		c.printUsage()
		return fmt.Errorf("subcommand required")
	}

	svc, err := connect()
	if err != nil {
		return err
	}

	switch args[0] {
	case "create":
		return c.runCreate(svc, args[1:])
	case "list":
		return c.runList(svc)
	case "revoke":
		return c.runRevoke(svc, args[1:])
	default:
		c.printUsage()
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func (c *Command) printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: gatehouse-cli token <subcommand> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  create   Create a token (-duration 3month|6month|1year)\n")
	fmt.Fprintf(os.Stderr, "  list     List all tokens\n")
	fmt.Fprintf(os.Stderr, "  revoke   Revoke a token (-value <at-rest value>)\n")
}

func connect() (token.Service, error) {
	envConfig := config.LoadEnv()
	cfg, err := config.Load(envConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := migrations.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return token.NewService(token.NewRepository(db)), nil
}

func (c *Command) runCreate(svc token.Service, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	duration := fs.String("duration", string(token.Duration3Month), "Access duration (3month, 6month, 1year)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	issued, err := svc.Issue(context.Background(), token.Duration(*duration))
	if err != nil {
		return err
	}

	fmt.Printf("Token created (hand out the value below; it is not shown again)\n")
	fmt.Printf("  value:  %s\n", issued.Plain)
	fmt.Printf("  expiry: %s\n", issued.Token.ExpiryDate.Format("2006-01-02"))
	return nil
}

func (c *Command) runList(svc token.Service) error {
	toks, err := svc.List(context.Background())
	if err != nil {
		return err
	}

	for _, t := range toks {
		state := "unused"
		if t.IsUsed {
			state = "used by " + t.UsedBy
			if t.UsedBy == "" {
				state = "used (unassigned)"
			}
		}
		fmt.Printf("%s  %-7s  expires %s  %s\n",
			t.Token, t.Duration, t.ExpiryDate.Format("2006-01-02"), state)
	}
	return nil
}

func (c *Command) runRevoke(svc token.Service, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	value := fs.String("value", "", "At-rest token value to revoke")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *value == "" {
		return fmt.Errorf("value is required")
	}

	if err := svc.Revoke(context.Background(), *value); err != nil {
		return err
	}
	fmt.Println("Token revoked")
	return nil
}
