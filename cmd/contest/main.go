package main

import (
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/Black-And-White-Club/beauty-contest/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "contest",
		Usage: "run a commit-reveal Keynesian beauty contest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONTEST_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "debug logging",
			},
		},
		Commands: []*cli.Command{
			newCommitCommand(),
			newRevealCommand(),
			newPreimageCommand(),
			newConsensusCommand(),
			newServeCommand(),
			newMigrateCommand(),
			newTokenCommand(),
		},
	}
}

// cliLogger routes slog through pterm's logger.
func cliLogger(c *cli.Context) *slog.Logger {
	level := pterm.LogLevelInfo
	if c.Bool("verbose") {
		level = pterm.LogLevelDebug
	}
	return slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(level)))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadConfig(c.String("config"))
}

// ledgerURL prefers the --ledger flag over the configured URL.
func ledgerURL(c *cli.Context, cfg *config.Config) (string, error) {
	if u := c.String("ledger"); u != "" {
		return u, nil
	}
	if cfg.Ledger.URL != "" {
		return cfg.Ledger.URL, nil
	}
	return "", cli.Exit("no ledger URL: pass --ledger or set LEDGER_URL", 2)
}

var ledgerFlag = &cli.StringFlag{
	Name:    "ledger",
	Aliases: []string{"l"},
	Usage:   "ledger base URL",
}
