package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"todolists/internal/config"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	Addr       string
	Backend    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "todolists",
		Short:        "Session-backed to-do list web app",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		Example: strings.TrimSpace(`
  # Serve with in-memory sessions on :4567
  todolists

  # Keep sessions in Postgres, applying migrations first
  todolists serve --backend postgres

  # Roll back the Postgres session schema
  todolists migrate down
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", os.Getenv("TODOLISTS_CONFIG"), "Path to a TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "Listen address (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "Session backend: memory|redis|postgres|sqlite (overrides config)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// loadConfig applies flags on top of the file and environment settings.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.LoadFile(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if addr := strings.TrimSpace(opts.Addr); addr != "" {
		cfg.Addr = addr
	}
	if backend := strings.TrimSpace(opts.Backend); backend != "" {
		cfg.SessionBackend = strings.ToLower(backend)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
