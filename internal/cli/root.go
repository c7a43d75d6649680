// Package cli implements msgctl, the operator tool for a messenger store.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/bootstrap"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/config"
	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
)

var (
	version = "dev"
	commit  = "unknown"
)

type session struct {
	configPath string
	verbose    bool
}

// withApp loads the configuration, opens the store and hands the wired
// application to fn. Everything is closed again when fn returns.
func (s *session) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	if s.configPath != "" {
		if err := os.Setenv("CONFIG_FILE", s.configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := "warn"
	if s.verbose {
		level = "debug"
	}
	if err := observability.InitLogger("msgctl", level); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, cfg, observability.Log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			observability.Log.Warn("failed to close store", zap.Error(cerr))
		}
	}()
	return fn(ctx, app)
}

// NewRootCmd builds the msgctl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:   "msgctl",
		Short: "Inspect and seed a messenger store",
		Long: `msgctl talks to the same store as the messenger server, using the
same configuration (environment variables or a YAML file).`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&s.configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(
		newSeedCmd(s),
		newSendCmd(s),
		newMessagesCmd(s),
		newInboxCmd(s),
		newParticipantsCmd(s),
		newSchemaCmd(),
	)
	return root
}

// Execute is called by main.main.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
