package cli

import (
	"fmt"
	"os"
)

// Command is one top-level CLI command
type Command interface {
	Name() string
	Description() string
	Run(args []string) error
}

// Registry dispatches to registered commands
type Registry struct {
	commands map[string]Command
	order    []string
}

// NewRegistry creates an empty command registry
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command
func (r *Registry) Register(cmd Command) {
	if _, ok := r.commands[cmd.Name()]; !ok {
		r.order = append(r.order, cmd.Name())
	}
	r.commands[cmd.Name()] = cmd
}

// Run dispatches args to the named command
func (r *Registry) Run(args []string) error {
	if len(args) < 1 {
		r.printUsage()
		return fmt.Errorf("command required")
	}

	cmd, ok := r.commands[args[0]]
	if !ok {
		r.printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}

	return cmd.Run(args[1:])
}

func (r *Registry) printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: gatehouse-cli <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, name := range r.order {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, r.commands[name].Description())
	}
}
