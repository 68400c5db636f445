package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/pricing_backend/config"
	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/mmdatafocus/pricing_backend/models/reports"
	"github.com/mmdatafocus/pricing_backend/utils"
	"github.com/urfave/cli/v2"
)

var analyzeCmd = &cli.Command{
	Name:    "analyze",
	Usage:   "Show history, offers and transactions of one RFQ",
	Aliases: []string{"a"},
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:     "rfq",
			Required: true,
			Usage:    "RFQ id",
		},
		&cli.StringFlag{
			Name:  "xlsx",
			Usage: "also write the analysis as an .xlsx workbook to this path",
		},
		&cli.BoolFlag{
			Name:  "upload",
			Usage: "upload the workbook to GCS_BUCKET",
		},
		&cli.DurationFlag{
			Name:  "link-ttl",
			Value: 24 * time.Hour,
			Usage: "lifetime of the signed download link printed after --upload",
		},
	},
	Action: func(ctx *cli.Context) error {
		rfqId := ctx.Int("rfq")
		if rfqId <= 0 {
			return errors.New("invalid rfq id")
		}

		config.ConnectDatabaseWithRetry()
		store := models.NewPricingStore(config.GetDB())
		analysis, err := reports.GetRFQAnalysis(ctx.Context, store, rfqId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return cli.Exit(fmt.Sprintf("rfq %d not found", rfqId), 2)
			}
			return err
		}
		if err := analysis.WriteText(os.Stdout); err != nil {
			return err
		}

		path := ctx.String("xlsx")
		upload := ctx.Bool("upload")
		if path == "" && !upload {
			return nil
		}
		data, err := analysis.ExcelBytes()
		if err != nil {
			return fmt.Errorf("render workbook: %w", err)
		}
		if path != "" {
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Println("\nworkbook written to", path)
		}
		if upload {
			objectName := reports.ReportObjectName(rfqId, time.Now())
			uri, err := utils.UploadBytesToGCS(ctx.Context, objectName, data, utils.XlsxContentType)
			if err != nil {
				return fmt.Errorf("upload workbook: %w", err)
			}
			fmt.Println("workbook uploaded to", uri)
			link, expires, err := utils.SignDownloadURL(ctx.Context, objectName, ctx.Duration("link-ttl"))
			if err != nil {
				fmt.Fprintln(os.Stderr, "no download link:", err)
				return nil
			}
			fmt.Printf("download link (valid until %s):\n%s\n", expires.UTC().Format(time.RFC3339), link)
		}
		return nil
	},
}
