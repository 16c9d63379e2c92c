// Package main provides todoctl, a command-line client for a JMAP Todo
// server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agenthands/jmaptodo/internal/config"
	"github.com/agenthands/jmaptodo/internal/jmap"
	"github.com/agenthands/jmaptodo/internal/logging"
	"github.com/agenthands/jmaptodo/internal/todo"
)

// app holds the global flags and the objects built from them.
type app struct {
	configPath string
	endpoint   string
	strategy   string
	verbose    bool
	jsonOutput bool

	log        zerolog.Logger
	client     *jmap.Client
	controller *todo.Controller
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "todoctl",
		Short: "Manage todos on a JMAP server",
		Long: `todoctl talks to a JMAP Todo server using batched method calls.

Examples:
  todoctl list                         # List all todos
  todoctl add Buy milk                 # Create a todo
  todoctl toggle <id>                  # Flip the completed flag
  todoctl rm <id>                      # Delete a todo
  todoctl --strategy client list       # Resolve result references locally`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default $CONFIG_PATH or config/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "JMAP API endpoint (overrides config)")
	rootCmd.PersistentFlags().StringVar(&a.strategy, "strategy", "", "Result reference strategy: server or client (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.toggleCmd(),
		a.rmCmd(),
		a.sessionCmd(),
	)
	return rootCmd
}

func (a *app) setup() error {
	_ = godotenv.Load()

	path := a.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.toml"
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if a.endpoint != "" {
		cfg.Client.Endpoint = a.endpoint
	}
	if a.strategy != "" {
		cfg.Client.Strategy = a.strategy
	}
	if a.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Pretty = true
	} else if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.log, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}

	strategy, err := jmap.ParseStrategy(cfg.Client.Strategy)
	if err != nil {
		return err
	}
	a.client, err = jmap.NewClient(jmap.Config{
		Endpoint: cfg.Client.Endpoint,
		Timeout:  time.Duration(cfg.Client.Timeout),
		Strategy: strategy,
	}, nil, a.log)
	if err != nil {
		return err
	}
	a.controller = todo.NewController(todo.NewAPI(a.client, cfg.Client.AccountID), a.log)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
