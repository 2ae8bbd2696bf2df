package main

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	consensusservice "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/application"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	consensusdb "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/repositories"
	ledgerclient "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/client"
	"github.com/Black-And-White-Club/beauty-contest/app/observability"
	"github.com/Black-And-White-Club/beauty-contest/config"
)

func newConsensusCommand() *cli.Command {
	return &cli.Command{
		Name:  "consensus",
		Usage: "fetch the ledger, score the contest and write the export bundle",
		Flags: []cli.Flag{
			ledgerFlag,
			&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
			&cli.StringFlag{Name: "k", Usage: "k factor, as a fraction or decimal (overrides config)"},
			&cli.BoolFlag{Name: "no-workbook", Usage: "skip the XLSX workbook"},
			&cli.BoolFlag{Name: "no-chart", Usage: "skip the distribution chart"},
			&cli.BoolFlag{Name: "archive", Usage: "store a snapshot in Postgres"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "do not print the leaderboard"},
		},
		Action: runConsensus,
	}
}

func runConsensus(c *cli.Context) error {
	logger := cliLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if k := c.String("k"); k != "" {
		cfg.Game.KFactor = k
	}
	params, err := cfg.Game.Params()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	u, err := ledgerURL(c, cfg)
	if err != nil {
		return err
	}
	client, err := ledgerclient.New(u, ledgerclient.WithTimeout(cfg.Ledger.Timeout), ledgerclient.WithLogger(logger))
	if err != nil {
		return err
	}

	var (
		repo consensusdb.Repository
		db   bun.IDB
	)
	if c.Bool("archive") {
		bunDB, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer bunDB.Close()
		repo = consensusdb.NewRepository(bunDB)
		db = bunDB
	}

	svc := consensusservice.NewConsensusService(
		client, client.BaseURL(), repo, nil, clock.Real{}, params,
		logger, observability.NoOpMetrics{}, observability.NopTracer(), db,
	)

	spinner, _ := pterm.DefaultSpinner.Start("Fetching commits and reveals...")
	report, err := svc.Run(c.Context, consensusservice.RunOptions{
		Trigger: consensusservice.TriggerCLI,
		Archive: c.Bool("archive"),
	})
	if err != nil {
		if spinner != nil {
			spinner.Fail("Ledger fetch failed")
		}
		return cli.Exit(err.Error(), 1)
	}
	if spinner != nil {
		spinner.Success(readSummary(report.Result.Stats))
	}

	written, err := consensusservice.WriteBundle(c.Path("out"), report.Export, consensusservice.BundleOptions{
		Workbook: !c.Bool("no-workbook"),
		Chart:    !c.Bool("no-chart"),
		RangeMin: params.Range.Min,
		RangeMax: params.Range.Max,
	})
	if err != nil {
		return err
	}

	if !c.Bool("quiet") {
		if err := printLeaderboard(report.Export.Leaderboard); err != nil {
			return err
		}
	}
	pterm.DefaultBox.WithTitle("Results").Println(consensusservice.ResultsText(report.Export.Summary))
	for _, path := range written {
		pterm.Success.Printfln("Wrote %s", path)
	}
	if report.SnapshotID != uuid.Nil {
		pterm.Info.Printfln("Archived as snapshot %s", report.SnapshotID)
	}
	return nil
}

// readSummary counts every row fetched, including rows the parser dropped.
func readSummary(stats consensusdomain.ParseStats) string {
	return fmt.Sprintf("Read %d commits and %d reveals", stats.CommitRows, stats.RevealRows)
}

func printLeaderboard(rows []consensusservice.LeaderboardRow) error {
	data := pterm.TableData{{"uni_id", "number", "verified", "reason", "distance"}}
	for _, r := range rows {
		distance := ""
		if r.Distance != nil {
			distance = strconv.FormatFloat(*r.Distance, 'f', 6, 64)
		}
		verified := pterm.LightRed("no")
		if r.Verified {
			verified = pterm.LightGreen("yes")
		}
		data = append(data, []string{r.Identity, r.Number, verified, r.Reason, distance})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func openDB(cfg *config.Config) (*bun.DB, error) {
	if cfg.Postgres.DSN == "" {
		return nil, cli.Exit("no database: set DATABASE_URL or postgres.dsn", 2)
	}
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	return bun.NewDB(pgdb, pgdialect.New()), nil
}
