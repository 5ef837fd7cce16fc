package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/feed"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var (
	txsCount       int
	txsBatchSize   int
	txsMaxLookback int
	txsFrom        string
	txsInteractive bool
)

var txsCmd = &cobra.Command{
	Use:   "txs",
	Short: "List the latest transactions",
	Long: `Walk backwards from the head (or --from) in batches of --batch-size blocks
and list the newest --count transactions, scanning at most --max-lookback
blocks. Blocks in a batch are fetched concurrently.

Examples:
  w3scan txs
  w3scan txs --count 50
  w3scan txs --from 19000000 --batch-size 10 --max-lookback 200`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		count := flagOr(cmd, "count", txsCount, cfg.Feed.Count)
		batch := flagOr(cmd, "batch-size", txsBatchSize, cfg.Feed.BatchSize)
		lookback := flagOr(cmd, "max-lookback", txsMaxLookback, cfg.Feed.MaxLookback)

		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		latest, err := startHeight(ctx, s, txsFrom)
		if err != nil {
			return err
		}

		req := feed.Request{Latest: latest, Count: count, BatchSize: batch, MaxLookback: lookback}
		opts := []feed.Option{feed.WithLogger(log)}

		var bar *progressbar.ProgressBar
		if w := statusWriter(cmd); w != io.Discard && lookback > 0 {
			bar = progressbar.NewOptions64(
				int64(scanBound(latest, lookback)),
				progressbar.OptionSetWriter(w),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetDescription("Scanning blocks..."),
				progressbar.OptionShowCount(),
			)
			opts = append(opts, feed.WithProgress(bar))
		}

		res, err := feed.New(s.client, opts...).Assemble(ctx, req)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return fmt.Errorf("assembling feed: %w", err)
		}

		dec, err := newDecoder()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		title := fmt.Sprintf("%s  %s",
			ui.StyleTitle.Render("Latest Transactions"),
			ui.Meta(fmt.Sprintf("(%s, from block #%d)", s.network.DisplayName, latest)),
		)
		if len(res.Entries) == 0 {
			fmt.Fprintf(out, "%s\n\n", title)
			fmt.Fprintln(out, ui.Meta(fmt.Sprintf("No transactions in the last %d blocks.", res.Scanned)))
			return nil
		}
		if txsInteractive {
			return ui.RunTxList(ui.NewTxList(title, res.Transactions(), methodNamer(dec), s.network.Explorer, time.Now()))
		}
		fmt.Fprintf(out, "%s\n\n", title)
		fmt.Fprint(out, ui.TxTable(res.Transactions(), methodNamer(dec), time.Now()).Render())
		summary := fmt.Sprintf("%d transactions from %d blocks", len(res.Entries), res.Scanned)
		if res.Exhausted {
			summary += ", fewer than requested (lookback limit or genesis reached)"
		}
		fmt.Fprintln(out, ui.Meta(summary))
		return nil
	},
}

// flagOr returns the flag value when the user set it, fallback otherwise.
func flagOr[T any](cmd *cobra.Command, name string, value, fallback T) T {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}

// scanBound is the most blocks a scan from latest can fetch.
func scanBound(latest uint64, lookback int) uint64 {
	if n := latest + 1; n < uint64(lookback) {
		return n
	}
	return uint64(lookback)
}

func init() {
	txsCmd.Flags().IntVarP(&txsCount, "count", "n", 10, "number of transactions to list (default from config feed.count)")
	txsCmd.Flags().IntVar(&txsBatchSize, "batch-size", feed.DefaultBatchSize, "blocks fetched concurrently per batch")
	txsCmd.Flags().IntVar(&txsMaxLookback, "max-lookback", feed.DefaultMaxLookback, "maximum number of blocks to scan")
	txsCmd.Flags().StringVar(&txsFrom, "from", "latest", "block height to start from")
	txsCmd.Flags().BoolVarP(&txsInteractive, "interactive", "i", false, "browse the list: o opens the explorer, c copies the hash")
}

// parseHeight parses a decimal block height or "latest" (ok false).
func parseHeight(s string) (height uint64, ok bool, err error) {
	if s == "" || s == "latest" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid block height %q: expected a non-negative number or \"latest\"", s)
	}
	return n, true, nil
}
