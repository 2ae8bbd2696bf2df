package main

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	authdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/domain"
	authjwt "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/jwt"
)

func newTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a JWT for the admin endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Required: true},
			&cli.StringFlag{Name: "role", Value: string(authdomain.RoleInstructor), Usage: "instructor or viewer"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (defaults to jwt.default_ttl)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return cli.Exit("JWT_SECRET is not set", 2)
			}
			role := authdomain.Role(c.String("role"))
			if role != authdomain.RoleInstructor && role != authdomain.RoleViewer {
				return cli.Exit("role must be instructor or viewer", 2)
			}
			ttl := cfg.JWT.DefaultTTL
			if c.IsSet("ttl") {
				ttl = c.Duration("ttl")
			}

			token, err := authjwt.NewProvider(cfg.JWT.Secret).GenerateToken(c.String("subject"), role, ttl)
			if err != nil {
				return err
			}
			pterm.Info.Printfln("Expires %s", time.Now().Add(ttl).UTC().Format(time.RFC3339))
			_, err = c.App.Writer.Write([]byte(token + "\n"))
			return err
		},
	}
}
