package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/narvanalabs/logkeeper/internal/auth"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store/driver"
	"github.com/spf13/cobra"
)

// newMigrateCommand constructs the `migrate` command.
func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the log stream and admin tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := driver.Migrate(cmd.Context(), s.store); err != nil {
				return fmt.Errorf("migrating %s store: %w", s.cfg.Store.Driver, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", s.cfg.Store.Driver)
			return nil
		},
	}
}

// newAdminCommand constructs the `admin` command group.
func newAdminCommand(e *env) *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Manage console administrators"}
	adminCmd.AddCommand(newAdminSetCommand(e), newAdminGetCommand(e))
	return adminCmd
}

func newAdminSetCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Create or update an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			disabled, _ := cmd.Flags().GetBool("disabled")

			admin := &models.Admin{
				ID:        args[0],
				Email:     email,
				Name:      name,
				Role:      models.AdminRole(role),
				Disabled:  disabled,
				CreatedAt: time.Now().UTC(),
			}
			if !admin.Role.Valid() {
				return fmt.Errorf("invalid role %q (super_admin, admin or moderator)", role)
			}
			if admin.Email == "" {
				return fmt.Errorf("--email is required")
			}

			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if existing, err := s.store.Admins().GetByID(cmd.Context(), admin.ID); err != nil {
				return err
			} else if existing != nil {
				admin.CreatedAt = existing.CreatedAt
			}
			if err := s.store.Admins().Upsert(cmd.Context(), admin); err != nil {
				return err
			}
			s.logger.Info("admin saved", "admin_id", admin.ID, "role", admin.Role, "disabled", admin.Disabled)
			return writeJSON(cmd, admin)
		},
	}
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("role", string(models.RoleModerator), "Role: super_admin|admin|moderator")
	cmd.Flags().Bool("disabled", false, "Disable the administrator")
	return cmd
}

func newAdminGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			admin, err := s.store.Admins().GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if admin == nil {
				return fmt.Errorf("admin %q not found", args[0])
			}
			return writeJSON(cmd, admin)
		},
	}
}

// newTokenCommand constructs the `token` command, which mints a bearer token.
func newTokenCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <admin-id>",
		Short: "Mint a bearer token for an administrator",
		Long: "token signs a JWT with the configured secret. The admin must exist and be enabled; " +
			"permissions are re-read from the admin store on every request.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expiry, _ := cmd.Flags().GetDuration("expiry")

			s, err := e.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			admin, err := s.store.Admins().GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if admin == nil || admin.Disabled {
				return fmt.Errorf("admin %q not found or disabled", args[0])
			}

			if expiry <= 0 {
				expiry = s.cfg.JWTExpiry
			}
			svc := auth.NewService(&auth.Config{
				JWTSecret:   []byte(s.cfg.JWTSecret),
				TokenExpiry: expiry,
			}, s.logger)
			token, err := svc.GenerateToken(admin.ID, admin.Email, string(admin.Role))
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("expiry", 0, "Token lifetime (default: jwt_expiry)")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	return out.Encode(v)
}
