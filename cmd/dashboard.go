package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/connection"
	"github.com/Mohsinsiddi/w3scan/internal/feed"
	"github.com/Mohsinsiddi/w3scan/internal/metrics"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var metricsAddr string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"home"},
	Short:   "Live view of the latest blocks and transactions",
	Long: `Open the live explorer home screen. The connection is polled every
poll_interval; each new head reloads the latest blocks and the transaction feed.

Keys: r refresh, q quit.

Examples:
  w3scan
  w3scan dashboard --rpc http://localhost:8545
  w3scan dashboard --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd)
	},
}

func runDashboard(cmd *cobra.Command) error {
	ctx := cmd.Context()
	addr := flagOr(cmd, "metrics-addr", metricsAddr, cfg.MetricsAddr)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	spin := newSpinner(cmd, "Connecting…")
	s, err := connect(ctx, chain.WithObserver(m))
	spin.Stop()
	if err != nil {
		return err
	}
	defer s.Close()

	dec, err := newDecoder()
	if err != nil {
		return err
	}

	// The screen belongs to the TUI while it runs.
	quiet := zerolog.Nop()

	srvErr := make(chan error, 1)
	if addr != "" {
		srv := metrics.NewServer(quiet, addr, reg)
		go func() { srvErr <- srv.Start() }()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	watcher := connection.New(s.client.URL(), s.client,
		connection.WithInterval(cfg.Interval()),
		connection.WithLogger(quiet),
		connection.WithListener(m),
	)
	states, unsubscribe := watcher.Subscribe()
	defer unsubscribe()
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	load := dashboardLoader(s.client, m.FeedRecorder(), quiet)
	model := ui.NewDashboard(ctx, s.network.DisplayName, states, load, methodNamer(dec))
	if err := ui.RunDashboard(ctx, model); err != nil {
		return err
	}

	select {
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	default:
	}
	return nil
}

// dashboardLoader fetches the latest blocks for head and then assembles the
// transaction feed, reusing the blocks it already holds.
func dashboardLoader(c feed.BlockFetcher, rec feed.Recorder, logger zerolog.Logger) ui.Loader {
	return func(ctx context.Context, head uint64) (ui.Snapshot, error) {
		blocks, err := fetchBlocks(ctx, c, feed.LatestHeights(head, cfg.BlocksToShow))
		if err != nil {
			return ui.Snapshot{}, err
		}

		held := make(map[uint64]*chain.Block, len(blocks))
		for _, b := range blocks {
			held[b.Number] = b
		}
		asm := feed.New(prefetched{blocks: held, next: c},
			feed.WithLogger(logger),
			feed.WithRecorder(rec),
		)
		res, err := asm.Assemble(ctx, feed.Request{
			Latest:      head,
			Count:       cfg.Feed.Count,
			BatchSize:   cfg.Feed.BatchSize,
			MaxLookback: cfg.Feed.MaxLookback,
		})
		if err != nil {
			return ui.Snapshot{}, err
		}
		return ui.Snapshot{Head: head, Blocks: blocks, Txs: res.Transactions()}, nil
	}
}

// prefetched serves blocks from a fixed set before falling back to next.
type prefetched struct {
	blocks map[uint64]*chain.Block
	next   feed.BlockFetcher
}

func (p prefetched) BlockByNumber(ctx context.Context, height uint64) (*chain.Block, error) {
	if b, ok := p.blocks[height]; ok {
		return b, nil
	}
	return p.next.BlockByNumber(ctx, height)
}

func init() {
	dashboardCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}
