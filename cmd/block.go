package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/feed"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var blocksCount int

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the latest blocks",
	Long: `List the newest blocks, head first.

Examples:
  w3scan blocks
  w3scan blocks -n 25`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		n := flagOr(cmd, "count", blocksCount, cfg.BlocksToShow)

		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		spin := newSpinner(cmd, fmt.Sprintf("Fetching latest %d blocks on %s…", n, s.network.DisplayName))
		head, err := s.client.BlockNumber(ctx)
		if err != nil {
			spin.Stop()
			return fmt.Errorf("fetching head: %w", err)
		}
		blocks, err := fetchBlocks(ctx, s.client, feed.LatestHeights(head, n))
		spin.Stop()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n\n", ui.StyleTitle.Render("Latest Blocks"), ui.Meta("("+s.network.DisplayName+")"))
		fmt.Fprint(out, ui.BlockTable(blocks, time.Now()).Render())

		gp, err := s.client.GasPrice(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("gas price unavailable")
			return nil
		}
		fmt.Fprintln(out, ui.Meta(fmt.Sprintf("Gas price: %.2f Gwei", chain.WeiToGwei(gp))))
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <height|latest>",
	Short: "Show a block and its transactions",
	Long: `Fetch a block by height and show its header and transactions.

Examples:
  w3scan block
  w3scan block latest
  w3scan block 19000000`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := "latest"
		if len(args) == 1 {
			ref = args[0]
		}
		return runBlock(cmd, ref)
	},
}

func runBlock(cmd *cobra.Command, ref string) error {
	height, exact, err := parseHeight(ref)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	spin := newSpinner(cmd, fmt.Sprintf("Fetching block %s on %s…", ref, s.network.DisplayName))
	var block *chain.Block
	if exact {
		block, err = s.client.BlockByNumber(ctx, height)
	} else {
		block, err = s.client.LatestBlock(ctx)
	}
	spin.Stop()
	if err != nil {
		return fmt.Errorf("fetching block %s: %w", ref, err)
	}

	dec, err := newDecoder()
	if err != nil {
		return err
	}
	return printBlock(cmd, s, block, methodNamer(dec))
}

func printBlock(cmd *cobra.Command, s *session, b *chain.Block, method ui.MethodFunc) error {
	out := cmd.OutOrStdout()
	now := time.Now()

	ts := "—"
	if b.Timestamp > 0 {
		ts = time.Unix(int64(b.Timestamp), 0).UTC().Format("2006-01-02 15:04:05 UTC") + "  (" + chain.Ago(b.Timestamp, now) + ")"
	}

	baseFee := "—  (legacy / pre-EIP-1559)"
	burnt := "—"
	if b.BaseFee != nil {
		baseFee = fmt.Sprintf("%.4f Gwei", chain.WeiToGwei(b.BaseFee))
		burnt = chain.FormatEth(b.BurntFees(), chain.DefaultEthDecimals) + " " + s.network.NativeCurrency
	}

	miner := b.Miner
	if miner == "" {
		miner = "—"
	}

	title := fmt.Sprintf("Block #%s  ·  %s", commaSep(b.Number), s.network.DisplayName)
	pairs := [][2]string{
		{"Hash", b.Hash},
		{"Parent", b.ParentHash},
		{"Timestamp", ts},
		{"Transactions", fmt.Sprintf("%d", b.TxCount())},
		{"Gas Used / Limit", fmt.Sprintf("%s / %s  (%s)", commaSep(b.GasUsed), commaSep(b.GasLimit), b.GasUsedPct())},
		{"Base Fee", baseFee},
		{"Burnt Fees", burnt},
		{"Fee Recipient", miner},
	}
	fmt.Fprintln(out, ui.KeyValueBlock(title, pairs))

	if b.TxCount() == 0 {
		fmt.Fprintln(out, ui.Meta("No transactions in this block."))
		return nil
	}
	fmt.Fprint(out, ui.TxTable(b.Transactions, method, now).Render())
	return nil
}

// fetchBlocks loads heights concurrently and returns the blocks in the same
// order. The first failure cancels the rest.
func fetchBlocks(ctx context.Context, c feed.BlockFetcher, heights []uint64) ([]*chain.Block, error) {
	blocks := make([]*chain.Block, len(heights))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range heights {
		g.Go(func() error {
			b, err := c.BlockByNumber(gctx, h)
			if err != nil {
				return fmt.Errorf("fetching block %d: %w", h, err)
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// startHeight resolves --from style references against the node's head.
func startHeight(ctx context.Context, s *session, ref string) (uint64, error) {
	height, exact, err := parseHeight(ref)
	if err != nil {
		return 0, err
	}
	if exact {
		return height, nil
	}
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching head: %w", err)
	}
	return head, nil
}

// commaSep formats a uint64 with comma thousands separators.
func commaSep(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	result := make([]byte, 0, len(s)+len(s)/3)
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(ch))
	}
	return string(result)
}

func init() {
	blocksCmd.Flags().IntVarP(&blocksCount, "count", "n", 10, "number of blocks to list (default from config blocks_to_show)")
}
