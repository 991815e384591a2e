package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"upbit-trader/internal/models"
	"upbit-trader/pkg/utils"
)

// csvCandle mirrors one row of an exported candle file. Timestamps are
// RFC3339 or a bare date; the date form maps to midnight UTC.
type csvCandle struct {
	Timestamp string  `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage stored candle history",
	}
	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataShowCmd(app))
	return cmd
}

func newDataImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <market> <file.csv>",
		Short: "Import candles from a CSV file",
		Long: `Import candle history from a CSV file with the columns
timestamp,open,high,low,close,volume. Rows that duplicate an existing
(market, timestamp) pair overwrite the stored candle.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("no data store configured")
			}
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[1], err)
			}
			defer f.Close()

			var rows []csvCandle
			if err := gocsv.UnmarshalFile(f, &rows); err != nil {
				return fmt.Errorf("parsing %s: %w", args[1], err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("%s contains no candle rows", args[1])
			}

			candles := make([]models.Candle, 0, len(rows))
			for i, row := range rows {
				ts, err := parseCandleTime(row.Timestamp)
				if err != nil {
					return fmt.Errorf("row %d: %w", i+1, err)
				}
				candles = append(candles, models.Candle{
					Timestamp: ts,
					Open:      row.Open,
					High:      row.High,
					Low:       row.Low,
					Close:     row.Close,
					Volume:    row.Volume,
				})
			}

			if err := app.Store.SaveCandles(cmd.Context(), market, candles); err != nil {
				return fmt.Errorf("saving candles: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"market":   market,
					"imported": len(candles),
					"from":     candles[0].Timestamp,
					"to":       candles[len(candles)-1].Timestamp,
				})
			}
			color.Cyan("📥 Imported %d candles into %s", len(candles), market)
			output.Printf("Range: %s .. %s\n",
				candles[0].Timestamp.Format("2006-01-02"),
				candles[len(candles)-1].Timestamp.Format("2006-01-02"))
			return nil
		},
	}
}

func newDataShowCmd(app *App) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "show <market>",
		Short: "Show recent stored candles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("no data store configured")
			}
			market, err := utils.NormalizeMarket(args[0])
			if err != nil {
				return err
			}

			to := time.Now()
			from := to.AddDate(0, 0, -days)
			candles, err := app.Store.GetCandles(cmd.Context(), market, from, to)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(candles)
			}

			color.Cyan("🕯  %s, last %d days (%d candles)", market, days, len(candles))
			for _, c := range candles {
				output.Printf("%s  O %s  H %s  L %s  C %s  V %.4f\n",
					c.Timestamp.Format("2006-01-02 15:04"),
					utils.FormatKRW(c.Open), utils.FormatKRW(c.High),
					utils.FormatKRW(c.Low), utils.FormatKRW(c.Close), c.Volume)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "how many days back to show")
	return cmd
}

func parseCandleTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
