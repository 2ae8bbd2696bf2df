package main

import (
	"fmt"
	"strings"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"github.com/Black-And-White-Club/beauty-contest/app"
	consensusqueue "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/queue"
)

func newMigrateCommand() *cli.Command {
	// withMigrators opens the database and hands the module migrators to fn.
	withMigrators := func(fn func(c *cli.Context, migrators []app.ModuleMigrator) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(c, app.Migrators(db))
		}
	}

	// pick returns the migrator named by the first argument.
	pick := func(c *cli.Context, migrators []app.ModuleMigrator) (*migrate.Migrator, string, error) {
		moduleName := c.Args().First()
		for _, mm := range migrators {
			if mm.Name == moduleName {
				return mm.Migrator, moduleName, nil
			}
		}
		return nil, "", fmt.Errorf("invalid module name: %q", moduleName)
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: withMigrators(func(c *cli.Context, migrators []app.ModuleMigrator) error {
					for _, mm := range migrators {
						fmt.Printf("Initializing migrations for module: %s\n", mm.Name)
						if err := mm.Migrator.Init(c.Context); err != nil {
							return fmt.Errorf("failed to initialize %s: %w", mm.Name, err)
						}
					}
					return nil
				}),
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: withMigrators(func(c *cli.Context, migrators []app.ModuleMigrator) error {
					for _, mm := range migrators {
						group, err := mm.Migrator.Migrate(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No new migrations to run for module: %s\n", mm.Name)
						} else {
							fmt.Printf("Migrated module: %s to %s\n", mm.Name, group)
						}
					}
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group of each module",
				Action: withMigrators(func(c *cli.Context, migrators []app.ModuleMigrator) error {
					// Reverse order so dependants roll back first.
					for i := len(migrators) - 1; i >= 0; i-- {
						mm := migrators[i]
						group, err := mm.Migrator.Rollback(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", mm.Name)
						} else {
							fmt.Printf("Rolled back module: %s to %s\n", mm.Name, group)
						}
					}
					return nil
				}),
			},
			{
				Name:      "create_go",
				Usage:     "create Go migration",
				ArgsUsage: "<module> <name...>",
				Action: withMigrators(func(c *cli.Context, migrators []app.ModuleMigrator) error {
					migrator, moduleName, err := pick(c, migrators)
					if err != nil {
						return err
					}
					mf, err := migrator.CreateGoMigration(c.Context, strings.Join(c.Args().Tail(), "_"))
					if err != nil {
						return err
					}
					fmt.Printf("Created migration for module %s: %s (%s)\n", moduleName, mf.Name, mf.Path)
					return nil
				}),
			},
			{
				Name:      "create_sql",
				Usage:     "create up and down SQL migrations",
				ArgsUsage: "<module> <name...>",
				Action: withMigrators(func(c *cli.Context, migrators []app.ModuleMigrator) error {
					migrator, moduleName, err := pick(c, migrators)
					if err != nil {
						return err
					}
					files, err := migrator.CreateSQLMigrations(c.Context, strings.Join(c.Args().Tail(), "_"))
					if err != nil {
						return err
					}
					for _, mf := range files {
						fmt.Printf("Created migration for module %s: %s (%s)\n", moduleName, mf.Name, mf.Path)
					}
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: withMigrators(func(c *cli.Context, migrators []app.ModuleMigrator) error {
					for _, mm := range migrators {
						ms, err := mm.Migrator.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", mm.Name)
						fmt.Printf("  %s\n", ms)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
					}
					return nil
				}),
			},
			{
				Name:  "river",
				Usage: "apply the River queue migrations",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if cfg.Postgres.DSN == "" {
						return cli.Exit("no database: set DATABASE_URL or postgres.dsn", 2)
					}
					if err := consensusqueue.Migrate(c.Context, cfg.Postgres.DSN); err != nil {
						return err
					}
					fmt.Println("River queue migrations completed")
					return nil
				},
			},
		},
	}
}
