package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
	ledgerclient "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/client"
)

func newCommitCommand() *cli.Command {
	return &cli.Command{
		Name:  "commit",
		Usage: "hash a number and optionally submit the commitment",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "your identifier", Required: true},
			&cli.IntFlag{Name: "number", Aliases: []string{"n"}, Usage: "your guess", Required: true},
			&cli.StringFlag{Name: "nonce", Usage: "secret nonce (random when omitted)"},
			&cli.PathFlag{Name: "receipt", Aliases: []string{"o"}, Usage: "write the receipt to this file"},
			&cli.BoolFlag{Name: "submit", Usage: "post the commitment to the ledger"},
			ledgerFlag,
		},
		Action: func(c *cli.Context) error {
			nonce := c.String("nonce")
			if !c.IsSet("nonce") {
				n, err := consensusdomain.NewNonce(0)
				if err != nil {
					return err
				}
				nonce = n
			}
			r := NewReceipt(c.String("id"), c.Int("number"), nonce)

			pterm.DefaultBox.WithTitle("Commitment").Println(
				pterm.Sprintfln("Preimage: %s", r.Preimage) +
					pterm.Sprintf("Commit:   %s", pterm.LightCyan(r.Commit)),
			)

			if path := c.Path("receipt"); path != "" {
				if err := writeReceipt(path, r); err != nil {
					return err
				}
				pterm.Success.Printfln("Receipt written to %s", path)
			} else {
				pterm.Warning.Println("Save your number and nonce. Without them you cannot reveal.")
			}

			if !c.Bool("submit") {
				return nil
			}
			return submit(c, func(client *ledgerclient.Client) (ledgerclient.SubmitResult, error) {
				return client.SubmitCommit(c.Context, r.UniID, r.Commit)
			})
		},
	}
}

func newRevealCommand() *cli.Command {
	return &cli.Command{
		Name:  "reveal",
		Usage: "submit a reveal from a receipt or from flags",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "receipt", Aliases: []string{"r"}, Usage: "receipt written by commit"},
			&cli.StringFlag{Name: "id", Usage: "your identifier"},
			&cli.IntFlag{Name: "number", Aliases: []string{"n"}, Usage: "your guess"},
			&cli.StringFlag{Name: "nonce", Usage: "the nonce you committed with"},
			ledgerFlag,
		},
		Action: func(c *cli.Context) error {
			var r Receipt
			if path := c.Path("receipt"); path != "" {
				var err error
				if r, err = readReceipt(path); err != nil {
					return err
				}
			} else {
				if !c.IsSet("id") || !c.IsSet("number") {
					return cli.Exit("reveal needs --receipt or both --id and --number", 2)
				}
				r = NewReceipt(c.String("id"), c.Int("number"), c.String("nonce"))
			}

			pterm.Info.Printfln("Revealing %d for %s (digest %s)", r.Number, r.UniID, r.Commit)
			return submit(c, func(client *ledgerclient.Client) (ledgerclient.SubmitResult, error) {
				return client.SubmitReveal(c.Context, r.UniID, r.Number, r.Nonce)
			})
		},
	}
}

func submit(c *cli.Context, send func(*ledgerclient.Client) (ledgerclient.SubmitResult, error)) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	u, err := ledgerURL(c, cfg)
	if err != nil {
		return err
	}
	client, err := ledgerclient.New(u, ledgerclient.WithTimeout(cfg.Ledger.Timeout), ledgerclient.WithLogger(cliLogger(c)))
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Submitting to the ledger...")
	res, err := send(client)
	if err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return cli.Exit(fmt.Sprintf("submission rejected: %v", err), 1)
	}
	if spinner != nil {
		spinner.Success("Submitted (HTTP " + strconv.Itoa(res.StatusCode) + ")")
	}
	return nil
}

func newPreimageCommand() *cli.Command {
	return &cli.Command{
		Name:  "preimage",
		Usage: "check a reveal against a digest without touching the ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true},
			&cli.StringFlag{Name: "number", Aliases: []string{"n"}, Required: true},
			&cli.StringFlag{Name: "nonce"},
			&cli.StringFlag{Name: "digest", Aliases: []string{"d"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			number, err := strconv.Atoi(c.String("number"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("number %q is not an integer", c.String("number")), 2)
			}
			preimage := consensusdomain.Preimage(c.String("id"), strconv.Itoa(number), c.String("nonce"))
			got := consensusdomain.Digest(preimage)

			pterm.Info.Printfln("Preimage: %s", preimage)
			pterm.Info.Printfln("Digest:   %s", got)
			if got != c.String("digest") {
				return cli.Exit("digest does not match: this reveal would be rejected as hash_mismatch", 1)
			}
			pterm.Success.Println("Digest matches")
			return nil
		},
	}
}
