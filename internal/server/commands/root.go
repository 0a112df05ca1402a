// Package commands defines the cobra command tree of the server binary.
package commands

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server"
	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/spf13/cobra"
)

// newApp is replaced in tests.
var newApp = server.NewApp

// NewRootCommand returns the taskmanager command with its subcommands.
// Configuration flags are persistent so every subcommand accepts them.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmanager",
		Short:         "Multi-tenant task manager server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(flags),
		newMigrateCommand(flags),
		newCreateAdminCommand(flags),
	)
	return root
}

// bootstrap loads configuration and builds the application.
func bootstrap(cmd *cobra.Command, flags *config.Flags) (*server.App, logging.Logger, error) {
	cfg, err := flags.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}
