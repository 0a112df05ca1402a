package commands

import (
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/spf13/cobra"
)

func newMigrateCommand(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := bootstrap(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
