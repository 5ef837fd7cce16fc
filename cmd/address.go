package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/internal/feed"
	"github.com/Mohsinsiddi/w3scan/internal/search"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var (
	addrDirection string
	addrPageSize  int
	addrBlock     uint64
)

var addressCmd = &cobra.Command{
	Use:   "address <address|name.eth>",
	Short: "Show an address: balance, nonce, code and recent transactions",
	Long: `Show the balance, nonce and contract status of an address together with its
ENS name. When the node exposes the Otterscan ots_ API (anvil --otterscan,
erigon, reth) the address's transaction history is listed as well.

Examples:
  w3scan address 0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045
  w3scan address vitalik.eth
  w3scan address vitalik.eth --direction after --block 17000000 --page-size 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := search.Classify(args[0])
		if err != nil {
			return err
		}
		if q.Kind != search.KindAddress && q.Kind != search.KindName {
			return fmt.Errorf("%q is not an address or ENS name", args[0])
		}
		return runAddress(cmd, q)
	},
}

func runAddress(cmd *cobra.Command, q search.Query) error {
	dir, err := chain.ParseDirection(addrDirection)
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

	resolver := newResolver(s)
	address, alias := q.Address, ""
	if q.Kind == search.KindName {
		spin := newSpinner(cmd, "Resolving "+q.Name+"…")
		address, err = resolver.Resolve(ctx, q.Name)
		spin.Stop()
		if err != nil {
			return err
		}
		alias = q.Name
	}

	spin := newSpinner(cmd, "Fetching "+ui.TruncateAddr(address)+"…")
	info, err := loadAddress(ctx, s, address)
	if err == nil && alias == "" {
		alias = resolver.Alias(ctx, address)
	}
	var page *chain.AddressPage
	var historyErr error
	if err == nil {
		if s.client.HasOtterscan(ctx) {
			page, historyErr = s.client.SearchTransactions(ctx, address, addrBlock, dir, addrPageSize)
		} else {
			historyErr = errNoOtterscan
		}
	}
	spin.Stop()
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	label, stored := storedLabel(store, address)
	if stored && label == "" {
		label = "(unnamed)"
	}

	out := cmd.OutOrStdout()
	kind := "Externally owned account"
	if info.contract {
		kind = "Contract"
	}
	pairs := [][2]string{
		{"Address", ui.WithAlias(address, alias)},
		{"Type", kind},
		{"Balance", chain.FormatEth(info.balance, chain.DefaultEthDecimals) + " " + s.network.NativeCurrency},
		{"Nonce", fmt.Sprintf("%d", info.nonce)},
	}
	if info.contract {
		pairs = append(pairs, [2]string{"Code Size", fmt.Sprintf("%d bytes", info.codeSize)})
	}
	if label != "" {
		pairs = append(pairs, [2]string{"Stored ABI", label})
	}
	if s.network.Explorer != "" {
		pairs = append(pairs, [2]string{"Explorer", strings.TrimSuffix(s.network.Explorer, "/") + "/address/" + address})
	}
	fmt.Fprintln(out, ui.KeyValueBlock("Address  ·  "+s.network.DisplayName, pairs))

	switch {
	case errors.Is(historyErr, errNoOtterscan):
		fmt.Fprintln(out, ui.Hint("Transaction history needs a node with the Otterscan ots_ API."))
	case historyErr != nil:
		fmt.Fprintln(out, ui.Warn("history unavailable: "+historyErr.Error()))
	case len(page.Transactions) == 0:
		fmt.Fprintln(out, ui.Meta("No transactions found."))
	default:
		dec, err := newDecoder()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.StyleHeader.Render(fmt.Sprintf("Transactions (%s block %s)", dir, blockLabel(addrBlock))))
		fmt.Fprint(out, ui.TxTable(page.Transactions, methodNamer(dec), time.Now()).Render())
		if !page.LastPage && dir == chain.SearchBefore {
			if last := page.Transactions[len(page.Transactions)-1]; last.BlockNum > 0 {
				fmt.Fprintln(out, ui.Hint(fmt.Sprintf("more: w3scan address %s --block %d", address, last.BlockNum)))
			}
		}
	}
	return nil
}

var errNoOtterscan = errors.New("node does not support the ots_ namespace")

type addressInfo struct {
	balance  *big.Int
	nonce    uint64
	contract bool
	codeSize int
}

// loadAddress fetches balance, nonce and code concurrently.
func loadAddress(ctx context.Context, s *session, address string) (*addressInfo, error) {
	info := &addressInfo{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.client.Balance(gctx, address)
		if err != nil {
			return fmt.Errorf("fetching balance: %w", err)
		}
		info.balance = b
		return nil
	})
	g.Go(func() error {
		n, err := s.client.Nonce(gctx, address)
		if err != nil {
			return fmt.Errorf("fetching nonce: %w", err)
		}
		info.nonce = n
		return nil
	})
	g.Go(func() error {
		code, err := s.client.Code(gctx, address)
		if err != nil {
			return fmt.Errorf("fetching code: %w", err)
		}
		info.contract = code != "" && code != "0x"
		info.codeSize = len(strings.TrimPrefix(code, "0x")) / 2
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return info, nil
}

func blockLabel(n uint64) string {
	if n == 0 {
		return "latest"
	}
	return "#" + commaSep(n)
}

var addressesCount int

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List addresses active in the latest transactions",
	Long: `Assemble the latest transactions and list every sender and recipient once,
newest first, with ENS names and stored contract labels.

Examples:
  w3scan addresses
  w3scan addresses -n 50`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		count := flagOr(cmd, "count", addressesCount, cfg.Feed.Count)

		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		spin := newSpinner(cmd, "Scanning latest transactions…")
		head, err := s.client.BlockNumber(ctx)
		if err != nil {
			spin.Stop()
			return fmt.Errorf("fetching head: %w", err)
		}
		req := feed.Request{Latest: head, Count: count, BatchSize: cfg.Feed.BatchSize, MaxLookback: cfg.Feed.MaxLookback}
		res, err := feed.New(s.client, feed.WithLogger(log)).Assemble(ctx, req)
		if err != nil {
			spin.Stop()
			return fmt.Errorf("assembling feed: %w", err)
		}
		addrs := feed.LatestAddresses(res.Entries)
		aliases := resolveAliases(ctx, newResolver(s), addrs)
		spin.Stop()

		store, err := openStore()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n\n", ui.StyleTitle.Render("Latest Addresses"),
			ui.Meta(fmt.Sprintf("(%d transactions, %d blocks)", len(res.Entries), res.Scanned)))
		if len(addrs) == 0 {
			fmt.Fprintln(out, ui.Meta("No addresses in the scanned blocks."))
			return nil
		}

		t := ui.NewTable([]ui.Column{
			{Title: "Address", Width: 42},
			{Title: "Name", Width: 24},
			{Title: "Contract", Width: 20},
		})
		for i, a := range addrs {
			label, _ := storedLabel(store, a)
			t.AddRow(ui.Row{ui.Addr(a), ui.Val(aliases[i]), label})
		}
		fmt.Fprint(out, t.Render())
		return nil
	},
}

// resolveAliases looks up every address concurrently. Failures leave the
// alias empty.
func resolveAliases(ctx context.Context, r aliaser, addrs []string) []string {
	out := make([]string, len(addrs))
	var g errgroup.Group
	g.SetLimit(8)
	for i, a := range addrs {
		g.Go(func() error {
			out[i] = r.Alias(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type aliaser interface {
	Alias(ctx context.Context, address string) string
}

// storedLabel is the name an ABI was stored under for address.
func storedLabel(store *contract.Store, address string) (string, bool) {
	e, err := store.Get(address)
	if err != nil {
		return "", false
	}
	return e.Name, true
}

func init() {
	addressCmd.Flags().StringVar(&addrDirection, "direction", string(chain.SearchBefore), "history direction relative to --block: before or after")
	addressCmd.Flags().IntVar(&addrPageSize, "page-size", 25, "transactions per page")
	addressCmd.Flags().Uint64Var(&addrBlock, "block", 0, "block to page from (0 = latest)")

	addressesCmd.Flags().IntVarP(&addressesCount, "count", "n", 10, "number of transactions to scan for addresses (default from config feed.count)")
}
