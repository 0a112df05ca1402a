package commands

import (
	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/spf13/cobra"
)

func newServeCommand(flags *config.Flags) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := bootstrap(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			if !skipMigrations {
				if err := app.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			app.Run(cmd.Context())
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")
	return cmd
}
