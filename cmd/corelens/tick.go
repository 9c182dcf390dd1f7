package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketpulse/corelens/internal/config"
	"github.com/marketpulse/corelens/internal/pipeline"
	"github.com/marketpulse/corelens/internal/types"
)

// snapshot is the recorded-feed fixture format consumed by `tick`: a
// single capture of everything a live Source would otherwise stream,
// for replaying one pipeline pass without an exchange connection.
type snapshot struct {
	OHLCV  types.OHLCV
	HTF    types.OHLCV
	Book   types.OrderBook
	Trades types.Trades
}

type staticSource struct{ snap snapshot }

func (s staticSource) FetchOHLCV(ctx context.Context, timeframe string, limit int) (types.OHLCV, time.Time, error) {
	return s.snap.OHLCV, time.Now(), nil
}

func (s staticSource) FetchHTFCandles(ctx context.Context, timeframe string, limit int) (types.OHLCV, error) {
	return s.snap.HTF, nil
}

func (s staticSource) GetOrderBookSnapshot() (types.OrderBook, bool) {
	return s.snap.Book, len(s.snap.Book.Bids) > 0
}

func (s staticSource) GetTradesSnapshot() types.Trades { return s.snap.Trades }

func tickCmd(ctx context.Context) *cobra.Command {
	var (
		snapshotPath string
		configPath   string
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one synchronous analysis pass against a recorded feed snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(snapshotPath)
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}
			var snap snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				return fmt.Errorf("parsing snapshot: %w", err)
			}

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			sup := pipeline.New(cfg, staticSource{snap: snap}, time.Now())
			sup.RunOnce(cmd.Context(), time.Now())

			select {
			case sig := <-sup.Signals():
				out, err := json.MarshalIndent(sig, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			default:
				h := sup.Health()
				fmt.Printf("no signal emitted (ticks_run=%d ticks_aborted=%d last_abort=%q)\n", h.TicksRun, h.TicksAborted, h.LastAbortCause)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "path to a JSON feed snapshot (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults baked in otherwise)")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}
