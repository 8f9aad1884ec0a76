package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/socdetect/migrations"
)

var errNoDatabase = errors.New("migrations require database.type postgres")

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the alert store schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if a.cfg.Database.Type != "postgres" {
				return errNoDatabase
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrations.Up(a.cfg.PostgresConnString()); err != nil {
					return err
				}
				a.out.Success("Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrations.Down(a.cfg.PostgresConnString()); err != nil {
					return err
				}
				a.out.Success("Migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := migrations.Version(a.cfg.PostgresConnString())
				if err != nil {
					return err
				}
				if dirty {
					a.out.Warn("Schema version %d (dirty)", version)
					return nil
				}
				a.out.Info("Schema version %d", version)
				return nil
			},
		},
	)
	return cmd
}
