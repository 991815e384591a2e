package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"upbit-trader/internal/notify"
	"upbit-trader/internal/stream"
)

// newWatchCmd re-evaluates decisions for the configured markets on an
// interval, from the most recent stored candles, and announces them.
func newWatchCmd(app *App) *cobra.Command {
	var (
		interval time.Duration
		level    string
		bell     bool
		markets  []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously re-evaluate decisions for the configured markets",
		Long: `Watch periodically rebuilds indicator readings from the latest stored
candles, runs them through the decision engine and announces the result.
Import fresh candles with "trader data import" while it runs; each pass
reads the store again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("no data store configured")
			}
			if len(markets) == 0 {
				markets = app.Config.Trading.Markets
			}
			if len(markets) == 0 {
				return fmt.Errorf("no markets configured, set trading.markets or pass --market")
			}
			if interval <= 0 {
				interval = time.Duration(app.Config.Trading.IntervalSeconds) * time.Second
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hub := stream.NewHub(app.Logger)
			defer hub.Close()

			notifier := notify.NewTerminalNotifier(os.Stdout,
				notify.WithLevel(notify.Level(level)),
				notify.WithBell(bell))
			events := hub.Subscribe(stream.AllMarkets)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range events {
					notifier.Notify(ev)
				}
			}()

			color.Cyan("👁  Watching %d market(s) every %s, Ctrl-C to stop", len(markets), interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			app.evaluateMarkets(ctx, hub, markets)
			for {
				select {
				case <-ctx.Done():
					hub.Close()
					<-done
					m := hub.Metrics()
					app.Logger.Info().
						Uint64("published", m.Published).
						Uint64("dropped", m.Dropped).
						Msg("watch stopped")
					return nil
				case <-ticker.C:
					app.evaluateMarkets(ctx, hub, markets)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "evaluation interval (default trading.interval_seconds)")
	cmd.Flags().StringVar(&level, "level", string(notify.LevelChangesOnly), "announce level: all, actions_only, changes_only")
	cmd.Flags().BoolVar(&bell, "bell", false, "ring the terminal bell on BUY/SELL")
	cmd.Flags().StringSliceVarP(&markets, "market", "m", nil, "market to watch (repeatable, default trading.markets)")

	return cmd
}

// evaluateMarkets runs one decision pass over the given markets and
// publishes the results. Markets without enough candle history are
// skipped with a debug log rather than failing the pass.
func (app *App) evaluateMarkets(ctx context.Context, hub *stream.Hub, markets []string) {
	const lookback = 30

	to := time.Now()
	from := to.AddDate(0, 0, -lookback)
	provider := momentumProvider()

	for _, market := range markets {
		if ctx.Err() != nil {
			return
		}
		candles, err := app.Store.GetCandles(ctx, market, from, to)
		if err != nil {
			app.Logger.Warn().Err(err).Str("market", market).Msg("candle load failed")
			continue
		}
		if len(candles) == 0 {
			app.Logger.Debug().Str("market", market).Msg("no stored candles, skipping")
			continue
		}

		readings := provider.Readings(candles, len(candles)-1)
		if len(readings) == 0 {
			app.Logger.Debug().Str("market", market).Msg("not enough history for indicators")
			continue
		}

		decision := app.Engine.Decide(market, readings)
		hub.Publish(stream.Event{
			Market:   market,
			Decision: decision,
			Readings: readings,
			At:       decision.Timestamp,
		})
	}
}
