package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Open whatever a query refers to: address, block, transaction or ENS name",
	Long: `Classify the query and show the matching page.

  0x + 40 hex   address
  digits        block number
  0x + 64 hex   transaction hash
  *.eth         ENS name (resolved to an address)

Examples:
  w3scan search 19000000
  w3scan search vitalik.eth
  w3scan search 0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := search.Classify(strings.Join(args, " "))
		if err != nil {
			return err
		}
		log.Debug().Str("query", q.Raw).Stringer("kind", q.Kind).Msg("search")

		switch q.Kind {
		case search.KindAddress, search.KindName:
			return runAddress(cmd, q)
		case search.KindBlock:
			return runBlock(cmd, strconv.FormatUint(q.Block, 10))
		case search.KindTx:
			return runTx(cmd, q.Hash)
		}
		return fmt.Errorf("%w: nothing to search for", search.ErrUnrecognized)
	},
}
