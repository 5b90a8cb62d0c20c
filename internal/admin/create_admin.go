package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/auth"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/spf13/cobra"
)

var errPasswordMismatch = errors.New("passwords do not match")

func newCreateAdminCommand(dsn *string) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote an existing user",
		Long: `Create an administrator account. If the username already exists the
user is promoted to admin and keeps the current password. The password for a
new account is read from the terminal without echo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("--username is required")
			}
			if utf8.RuneCountInString(username) > models.MaxUsernameLen {
				return fmt.Errorf("username must be at most %d characters", models.MaxUsernameLen)
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx, *dsn)
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			promoted, err := createAdmin(ctx, b, username, func() (string, error) {
				pw, err := promptPassword(out, "Password: ")
				if err != nil {
					return "", err
				}
				confirm, err := promptPassword(out, "Repeat password: ")
				if err != nil {
					return "", err
				}
				if pw != confirm {
					return "", errPasswordMismatch
				}
				return pw, nil
			})
			if err != nil {
				return err
			}

			if promoted {
				fmt.Fprintf(out, "User %q promoted to admin\n", username)
			} else {
				fmt.Fprintf(out, "Admin %q created\n", username)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "administrator username")
	return cmd
}

// createAdmin promotes username when it exists and creates it otherwise.
// password is only called for a new account.
func createAdmin(ctx context.Context, b *backend, username string, password func() (string, error)) (bool, error) {
	users := b.manager.Users(b.conn)
	existing, err := users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return true, nil
		}
		return true, users.UpdateRole(ctx, existing.ID, models.RoleAdmin)
	case !errors.Is(err, common.ErrorNotFound):
		return false, err
	}

	pw, err := password()
	if err != nil {
		return false, err
	}
	if pw == "" {
		return false, errors.New("password must not be empty")
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return false, err
	}

	err = b.conn.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := b.manager.Users(tx).Create(ctx, &models.User{
			Username:     username,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
		})
		return err
	})
	return false, err
}
