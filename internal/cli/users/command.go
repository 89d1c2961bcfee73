package users

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sorewa/gatehouse/internal/config"
	"github.com/sorewa/gatehouse/internal/database"
	"github.com/sorewa/gatehouse/internal/domain/session"
	"github.com/sorewa/gatehouse/internal/domain/token"
	"github.com/sorewa/gatehouse/internal/domain/user"
	"github.com/sorewa/gatehouse/internal/migrations"
)

// Command implements account administration
type Command struct{}

func (c *Command) Name() string {
	return "user"
}

func (c *Command) Description() string {
	return "Manage accounts (list, delete, force-logout, renew)"
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
	case "list":
		return c.runList(svc)
	case "delete":
		return c.runDelete(svc, args[1:])
	case "force-logout":
		return c.runForceLogout(svc, args[1:])
	case "renew":
		return c.runRenew(svc, args[1:])
	default:
		c.printUsage()
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func (c *Command) printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: gatehouse-cli user <subcommand> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Subcommands:\n")
	fmt.Fprintf(os.Stderr, "  list          List all accounts\n")
	fmt.Fprintf(os.Stderr, "  delete        Delete an account and its token (-username)\n")
	fmt.Fprintf(os.Stderr, "  force-logout  Deactivate an account's sessions (-username)\n")
	fmt.Fprintf(os.Stderr, "  renew         Replace an account's token (-username, -duration)\n")
}

func connect() (user.Service, error) {
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

	registry := session.NewRegistry(session.NewRepository(db), cfg.Session.StoreTimeout())
	tokens := token.NewService(token.NewRepository(db))
	return user.NewService(user.NewRepository(db), tokens, registry), nil
}

func (c *Command) runList(svc user.Service) error {
	users, err := svc.List(context.Background())
	if err != nil {
		return err
	}

	for _, u := range users {
		expiry := "-"
		if u.TokenExpiry != nil {
			expiry = u.TokenExpiry.Format("2006-01-02")
		}
		fmt.Printf("%-20s  token expiry %s  created %s\n",
			u.Username, expiry, u.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func usernameFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	username := fs.String("username", "", "Account username")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *username == "" {
		return "", fmt.Errorf("username is required")
	}
	return *username, nil
}

func (c *Command) runDelete(svc user.Service, args []string) error {
	username, err := usernameFlag("delete", args)
	if err != nil {
		return err
	}

	if err := svc.Delete(context.Background(), username); err != nil {
		return err
	}
	fmt.Println("User deleted")
	return nil
}

func (c *Command) runForceLogout(svc user.Service, args []string) error {
	username, err := usernameFlag("force-logout", args)
	if err != nil {
		return err
	}

	if err := svc.ForceLogout(context.Background(), username); err != nil {
		return err
	}
	fmt.Println("Sessions deactivated")
	return nil
}

func (c *Command) runRenew(svc user.Service, args []string) error {
	fs := flag.NewFlagSet("renew", flag.ExitOnError)
	username := fs.String("username", "", "Account username")
	duration := fs.String("duration", string(token.Duration3Month), "Access duration (3month, 6month, 1year)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("username is required")
	}

	issued, err := svc.RenewToken(context.Background(), *username, token.Duration(*duration))
	if err != nil {
		return err
	}

	fmt.Printf("Token renewed (hand out the value below; it is not shown again)\n")
	fmt.Printf("  value:  %s\n", issued.Plain)
	fmt.Printf("  expiry: %s\n", issued.Token.ExpiryDate.Format("2006-01-02"))
	return nil
}
