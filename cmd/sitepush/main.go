// Package main is the entrypoint for the sitepush CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eugenetaranov/sitepush/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	debug   bool
	noColor bool
)

// Override flags shared by apply, sync and test
var overrides config.Overrides

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitepush",
	Short: "Sitepush - mirror a local build onto an FTP or SFTP server",
	Long: `Sitepush replaces a remote directory with the contents of a local one.

A config file names the server, the local and remote directories, and
optional commands to run before and after the upload.

Supports FTP, SFTP and local targets.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	for _, cmd := range []*cobra.Command{applyCmd, syncCmd, testCmd} {
		cmd.Flags().StringVar(&overrides.Protocol, "protocol", "", "Override the protocol (ftp, sftp, local)")
		cmd.Flags().StringVar(&overrides.Host, "host", "", "Override the remote host")
		cmd.Flags().IntVar(&overrides.Port, "port", 0, "Override the remote port")
		cmd.Flags().StringVar(&overrides.Username, "user", "", "Override the username")
		cmd.Flags().StringVar(&overrides.LocalRoot, "local", "", "Override the local directory")
		cmd.Flags().StringVar(&overrides.RemoteRoot, "remote", "", "Override the remote directory")
	}

	execCmd.Flags().StringVar(&execDir, "dir", ".", "Directory to run the command in")

	// Add subcommands
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(validateCmd)
}

// applyCmd runs the full job
var applyCmd = &cobra.Command{
	Use:   "apply <config>",
	Short: "Build, upload and finish a site",
	Long: `Run the pre-command, replace the remote directory with the local one,
then run the post-command.

A pre-command that exits non-zero stops the job before anything is uploaded.

Examples:
  sitepush apply site.json
  sitepush apply site.yaml --debug
  sitepush apply site.yaml --remote /var/www/staging`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0], overrides)
		if err != nil {
			return err
		}
		return exitOnFailure(func(ctx context.Context, a *app) bool {
			return a.apply(ctx, cfg)
		})
	},
}

// syncCmd uploads without running commands
var syncCmd = &cobra.Command{
	Use:   "sync <config>",
	Short: "Replace the remote directory with the local one",
	Long: `Erase the remote directory and upload every local file again.
The pre- and post-commands are not run.

Examples:
  sitepush sync site.json
  sitepush sync site.json --protocol ftp --port 2121`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0], overrides)
		if err != nil {
			return err
		}
		return exitOnFailure(func(ctx context.Context, a *app) bool {
			return a.sync(ctx, cfg)
		})
	},
}

// testCmd checks that the server accepts the configured credentials
var testCmd = &cobra.Command{
	Use:   "test <config>",
	Short: "Test the connection to the server",
	Long: `Open a session with the configured endpoint and close it again.

Examples:
  sitepush test site.json
  sitepush test site.json --user deploy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0], overrides)
		if err != nil {
			return err
		}
		ep, err := cfg.Endpoint()
		if err != nil {
			return err
		}
		return exitOnFailure(func(ctx context.Context, a *app) bool {
			return a.test(ctx, ep)
		})
	},
}

var execDir string

// execCmd runs a single command
var execCmd = &cobra.Command{
	Use:   "exec [--dir <dir>] -- <command>",
	Short: "Run a command and print its output",
	Long: `Run one shell command in a directory and print what it wrote.

Examples:
  sitepush exec --dir ./site -- npm run build
  sitepush exec -- ls -la`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		line := strings.Join(args, " ")
		return exitOnFailure(func(ctx context.Context, a *app) bool {
			return a.runStep(ctx, execDir, line)
		})
	},
}

// validateCmd validates configs without running them
var validateCmd = &cobra.Command{
	Use:   "validate <config> [config2 ...]",
	Short: "Validate one or more configs",
	Long: `Parse and validate config files without connecting anywhere.

This checks for:
  - Valid JSON or YAML syntax
  - Known keys only
  - Defined environment references
  - Required fields (host, username, password, local_root, remote_root)

Examples:
  sitepush validate site.json
  sitepush validate configs/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateConfigs,
}

func validateConfigs(cmd *cobra.Command, args []string) error {
	var hasErrors bool

	for _, configPath := range args {
		if _, err := loadConfig(configPath, config.Overrides{}); err != nil {
			fmt.Printf("FAIL: %s - %v\n", configPath, err)
			hasErrors = true
		} else {
			fmt.Printf("OK: %s\n", configPath)
		}
	}

	if hasErrors {
		return fmt.Errorf("one or more configs failed validation")
	}

	fmt.Printf("\nAll %d config(s) valid.\n", len(args))
	return nil
}

func loadConfig(configPath string, o config.Overrides) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config not found: %s", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Apply(o)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// exitOnFailure runs fn with a signal-aware context and exits 1 when it
// reports failure.
func exitOnFailure(fn func(ctx context.Context, a *app) bool) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}

	a := newApp(os.Stdout, logger)
	a.out.SetColor(!noColor)
	a.out.SetDebug(debug)

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if !fn(ctx, a) {
		cancel()
		os.Exit(1)
	}
	return nil
}
