// Package user implements account bootstrap commands for operators,
// useful when self-service signup is disabled.
package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribe-notes/scribe/internal/conf"
	"github.com/scribe-notes/scribe/internal/datastore"
	"github.com/scribe-notes/scribe/internal/security"
)

// Command creates the user management command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(addCommand(settings))

	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add [email]",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addUser(settings, args[0], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password for the new account")
	if err := cmd.MarkFlagRequired("password"); err != nil {
		cobra.CheckErr(err)
	}

	return cmd
}

func addUser(settings *conf.Settings, email, password string) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled, enable sqlite or mysql in the configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = ds.Close()
	}()

	// operator bootstrap bypasses the signup toggle
	authSettings := settings.Security
	authSettings.AllowSignup = true

	svc := security.NewService(ds, &authSettings)
	user, err := svc.Signup(email, password)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
	return nil
}
