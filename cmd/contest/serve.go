package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Black-And-White-Club/beauty-contest/app"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
)

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the ledger, result API and finalize scheduler",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply migrations before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(os.Stdout, cfg.Observability.LogFormat, cfg.Observability.LogLevel)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if c.Bool("migrate") && application.DB != nil {
				if err := app.MigrateAll(ctx, application.DB, cfg.Postgres.DSN, logger); err != nil {
					application.Close()
					return err
				}
			}
			return application.Run(ctx)
		},
	}
}
