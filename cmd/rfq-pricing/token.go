package main

import (
	"fmt"

	"github.com/mmdatafocus/pricing_backend/utils"
	"github.com/urfave/cli/v2"
)

var tokenCmd = &cli.Command{
	Name:  "token",
	Usage: "Mint a bearer token for the pricing service (API_SECRET, TOKEN_HOUR_LIFESPAN)",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "user-id",
			Value: 1,
			Usage: "id embedded in the token",
		},
		&cli.StringFlag{
			Name:  "role",
			Value: "pricing-operator",
			Usage: "role embedded in the token",
		},
	},
	Action: func(ctx *cli.Context) error {
		token, err := utils.JwtGenerate(ctx.Int("user-id"), ctx.String("role"))
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}
