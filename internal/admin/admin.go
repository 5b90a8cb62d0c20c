// Package admin implements blogctl, the operator command line for the blog
// backend: applying migrations and bootstrapping administrator accounts.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/repomanager"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Version is overridden at build time with -ldflags "-X ...admin.Version=...".
var Version = "dev"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type backend struct {
	db      *sql.DB
	conn    dbx.Conn
	manager repomanager.RepositoryManager
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// openBackend is a seam for tests.
var openBackend = func(ctx context.Context, dsn string) (*backend, error) {
	db, err := repomanager.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &backend{
		db:      db,
		conn:    dbx.NewDB(db),
		manager: repomanager.NewPostgresRepositoryManager(),
	}, nil
}

func defaultDSN() string {
	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		return v
	}
	var c config.Config
	c.LoadDefaults()
	return c.DatabaseDSN
}

// NewRootCommand builds the blogctl command tree.
func NewRootCommand() *cobra.Command {
	var dsn string

	root := &cobra.Command{
		Use:           "blogctl",
		Short:         "Operator tools for the blog backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "db", defaultDSN(), "PostgreSQL connection URL (defaults to $DATABASE_URL)")

	root.AddCommand(
		newMigrateCommand(&dsn),
		newCreateAdminCommand(&dsn),
		newVersionCommand(),
	)
	return root
}

// Execute runs blogctl with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the blogctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogctl %s\n", Version)
		},
	}
}

func newMigrateCommand(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := openBackend(ctx, *dsn)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.manager.RunMigrations(ctx, b.db); err != nil {
				return fmt.Errorf("migration error: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
