// rfq-pricing prices pending RFQs and inspects the result.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/rfq-pricing migrate
//	go run ./cmd/rfq-pricing decide --workers 4
//	go run ./cmd/rfq-pricing analyze --rfq 42 --xlsx rfq-42.xlsx --upload
package main

import (
	"fmt"
	"os"

	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "rfq-pricing",
		Usage: "Price pending RFQs from purchase history and supplier offers",
		Commands: []*cli.Command{
			migrateCmd,
			decideCmd,
			analyzeCmd,
			tokenCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Create or update the pricing tables",
	Action: func(ctx *cli.Context) error {
		config.ConnectDatabaseWithRetry()
		if err := models.Migrate(config.GetDB()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrated", len(models.AllModels()), "tables")
		return nil
	},
}
