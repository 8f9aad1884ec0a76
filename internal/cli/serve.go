package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/socdetect/internal/handlers"
	"github.com/telhawk-systems/socdetect/internal/nats"
	"github.com/telhawk-systems/socdetect/internal/server"
	"github.com/telhawk-systems/socdetect/migrations"
)

func newServeCmd(a *app) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Starts the HTTP API. With NATS enabled it also scores every alert
announced on the alert created subject.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Database.Type == "postgres" && !skipMigrations {
				if err := migrations.Up(a.cfg.PostgresConnString()); err != nil {
					return err
				}
				a.logger.Info("database migrations applied")
			}

			rt, err := a.buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.nats != nil {
				handler, err := nats.NewHandler(rt.nats, rt.scorer, rt.publisher, a.logger)
				if err != nil {
					return err
				}
				if err := handler.Start(ctx); err != nil {
					return fmt.Errorf("failed to start NATS handler: %w", err)
				}
				defer handler.Stop()
			}

			router := server.NewRouter(handlers.NewHandler(rt.service, a.logger), a.cfg.Server, a.logger)
			if err := server.New(router, a.cfg.Server, a.logger).Run(ctx); err != nil {
				return err
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
	return cmd
}
