package commands

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/spf13/cobra"
)

func newCreateAdminCommand(flags *config.Flags) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account or promote an existing user",
		Long: `Creates an admin account with the given email. If a user with that
email already exists it is promoted to admin and keeps its password.

	taskmanager create-admin --email admin@example.com
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}

			password, err := promptNewPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := services.ValidatePassword(password); err != nil {
				return err
			}

			app, _, err := bootstrap(cmd, flags)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Migrate(cmd.Context()); err != nil {
				return err
			}

			user, outcome, err := app.Admin().PromoteAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outcome {
			case services.AdminCreated:
				fmt.Fprintf(out, "Admin user created: %s\n", user.Email)
			case services.AdminUpgraded:
				fmt.Fprintf(out, "User %s upgraded to admin\n", user.Email)
			case services.AdminExists:
				fmt.Fprintf(out, "Admin user %s already exists\n", user.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "admin email address")
	return cmd
}
