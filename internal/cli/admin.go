package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/services"
)

func newCreateAdminCommand(a *app) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office account",
		Long:  `Create an admin account. The password may come from ADMIN_PASSWORD to keep it out of the shell history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if password == "" {
				return errors.New("a password is required (--password or ADMIN_PASSWORD)")
			}

			repo, err := OpenStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			admins := services.NewAdminService(repo, auth.NewPasswordHasher(0))
			admin, err := admins.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return fmt.Errorf("create admin %s: %w", email, err)
			}
			a.logger.Info("Admin created", "admin_id", admin.ID, "email", admin.Email)
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", admin.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrador", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login e-mail")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
