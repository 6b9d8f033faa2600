// Package cli implements the caseintel command line interface. Commands talk
// to a running API server through pkg/client; nothing in this package touches
// the databases directly.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opentenancy/caseintel/internal/config"
	"github.com/opentenancy/caseintel/internal/infrastructure/monitoring/logging"
	"github.com/opentenancy/caseintel/pkg/client"
	"github.com/opentenancy/caseintel/pkg/errors"
)

// Build information, injected at link time:
//
//	go build -ldflags "-X github.com/opentenancy/caseintel/internal/interfaces/cli.Version=v1.2.0 ..."
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// RootOptions holds the values of the persistent flags shared by every
// subcommand.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	JSON       bool
	NoColor    bool
	ServerAddr string
	APIKey     string
	Timeout    time.Duration
}

// CLIContext carries the initialised dependencies to subcommands through the
// command context. Client is nil when no server address could be resolved.
type CLIContext struct {
	Config  *config.Config
	Logger  logging.Logger
	Client  *client.Client
	JSON    bool
	Verbose bool
}

type cliContextKey struct{}

// NewRootCommand builds the caseintel root command with all subcommands and
// persistent flags registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use:   "caseintel",
		Short: "Tenant legal document intelligence from the command line",
		Long: `caseintel classifies housing-court documents, extracts the fields tenant
advocates need, and aggregates them into per-case snapshots.

Commands run against a caseintel API server. Point the CLI at a server with
--server, a config file, or CASEINTEL_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initCLIContext(cmd, opts)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "path to the configuration file")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging on stderr")
	pf.BoolVar(&opts.JSON, "json", false, "print results as indented JSON")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server base URL, e.g. http://localhost:8080")
	pf.StringVar(&opts.APIKey, "api-key", os.Getenv("CASEINTEL_API_KEY"), "API key sent as X-API-Key")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "timeout for API requests")

	rootCmd.AddCommand(
		NewClassifyCmd(),
		NewFieldsCmd(),
		NewIngestCmd(),
		NewCaseCmd(),
		NewSearchCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}

// initCLIContext resolves configuration, logging, and the API client, then
// stores them in the command context for subcommands to retrieve.
func initCLIContext(cmd *cobra.Command, opts *RootOptions) error {
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return err
	}

	log, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}

	apiClient, err := initClient(cfg, opts)
	if err != nil {
		// Commands that need the server fail later with a clear message;
		// commands like version still work.
		log.Warn("API client not configured", logging.Err(err))
		apiClient = nil
	}

	cliCtx := &CLIContext{
		Config:  cfg,
		Logger:  log,
		Client:  apiClient,
		JSON:    opts.JSON,
		Verbose: opts.Verbose,
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration from, in order: the --config flag, the
// default search paths, then CASEINTEL_* environment variables with built-in
// defaults. An explicit --config path that fails to load is an error; a
// missing default path is not.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	for _, path := range defaultConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}

	return config.LoadFromEnv()
}

func defaultConfigPaths() []string {
	paths := []string{"caseintel.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".caseintel", "config.yaml"))
	}
	paths = append(paths, "/etc/caseintel/config.yaml")
	return paths
}

// initLogger builds a console logger on stderr so command output on stdout
// stays machine-readable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := "info"
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// initClient constructs the API client from the --server flag, falling back
// to the configured server address.
func initClient(cfg *config.Config, opts *RootOptions) (*client.Client, error) {
	addr := opts.ServerAddr
	if addr == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "localhost"
		}
		addr = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}

	clientOpts := []client.Option{
		client.WithTimeout(opts.Timeout),
		client.WithUserAgent("caseintel-cli/" + Version),
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, client.WithAPIKey(opts.APIKey))
	}

	return client.NewClient(addr, clientOpts...)
}

// GetCLIContext retrieves the CLIContext stored by the root command's
// PersistentPreRunE.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	v := cmd.Context().Value(cliContextKey{})
	cliCtx, ok := v.(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is not initialised")
	}
	return cliCtx, nil
}

// requireClient returns the API client or an actionable error when none was
// configured.
func requireClient(cliCtx *CLIContext) (*client.Client, error) {
	if cliCtx.Client == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable,
			"no API server configured; pass --server or set server.host in the config")
	}
	return cliCtx.Client, nil
}

// Execute runs the root command. Errors are printed to stderr and exit with
// status 1.
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
