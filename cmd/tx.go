package cmd

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/internal/search"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var txLogs bool

var txCmd = &cobra.Command{
	Use:   "tx <hash>",
	Short: "Show a transaction with its decoded call and event logs",
	Long: `Fetch a transaction and its receipt. Calldata and logs are decoded with the
ABIs in the store ("w3scan abi add"), the bundled ERC-20/ERC-721 ABIs and a
table of well-known selectors.

Examples:
  w3scan tx 0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b
  w3scan tx 0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b --logs=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := search.Classify(args[0])
		if err != nil || q.Kind != search.KindTx {
			return fmt.Errorf("invalid transaction hash %q: expected 0x followed by 64 hex characters", args[0])
		}
		return runTx(cmd, q.Hash)
	},
}

func runTx(cmd *cobra.Command, hash string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	spin := newSpinner(cmd, "Fetching transaction…")
	tx, err := s.client.TransactionByHash(ctx, hash)
	if err != nil {
		spin.Stop()
		return err
	}
	var receipt *chain.TxReceipt
	if !tx.Pending {
		receipt, err = s.client.TransactionReceipt(ctx, hash)
	}
	spin.Stop()
	if err != nil {
		return fmt.Errorf("fetching receipt: %w", err)
	}

	dec, err := newDecoder()
	if err != nil {
		return err
	}
	printTx(cmd.OutOrStdout(), s.network, tx, receipt, dec, txLogs)
	return nil
}

func printTx(out io.Writer, network chain.Network, tx *chain.Transaction, receipt *chain.TxReceipt, dec *contract.Decoder, withLogs bool) {
	call := dec.DecodeCall(tx.To, tx.Input)

	to := tx.To
	if to == "" {
		to = "(contract creation)"
		if receipt != nil && receipt.ContractAddress != "" {
			to += "  " + receipt.ContractAddress
		}
	}

	block := fmt.Sprintf("#%s", commaSep(tx.BlockNum))
	status := ui.Status(tx.Pending, receipt != nil && receipt.Status == 1)
	if tx.Pending {
		block = "pending"
	}

	pairs := [][2]string{
		{"Hash", ui.Addr(tx.Hash)},
		{"Status", status},
		{"Block", block},
		{"From", ui.Addr(tx.From)},
		{"To", ui.Addr(to)},
		{"Value", chain.FormatEth(tx.Value, chain.DefaultEthDecimals) + " " + network.NativeCurrency},
		{"Nonce", fmt.Sprintf("%d", tx.Nonce)},
		{"Gas Limit", commaSep(tx.Gas)},
	}
	if tx.GasPrice != nil {
		pairs = append(pairs, [2]string{"Gas Price", fmt.Sprintf("%.4f Gwei", chain.WeiToGwei(tx.GasPrice))})
	}
	if receipt != nil {
		pairs = append(pairs, [2]string{"Gas Used", commaSep(receipt.GasUsed)})
		if receipt.EffectiveGasPrice != nil {
			fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
			pairs = append(pairs, [2]string{"Fee", chain.FormatEth(fee, chain.DefaultEthDecimals) + " " + network.NativeCurrency})
		}
	}
	pairs = append(pairs, [2]string{"Method", ui.Method(methodLabel(call))})
	if network.Explorer != "" {
		pairs = append(pairs, [2]string{"Explorer", strings.TrimSuffix(network.Explorer, "/") + "/tx/" + tx.Hash})
	}

	fmt.Fprintln(out, ui.KeyValueBlock("Transaction  ·  "+network.DisplayName, pairs))

	if call.Kind == contract.KindMethod && len(call.Args) > 0 {
		fmt.Fprintln(out, ui.StyleHeader.Render("Input"))
		printArgs(out, call.Args)
		fmt.Fprintln(out)
	}
	if call.Err != nil {
		fmt.Fprintln(out, ui.Warn("could not decode arguments: "+call.Err.Error()))
	}

	if !withLogs || receipt == nil {
		return
	}
	fmt.Fprintln(out, ui.StyleHeader.Render(fmt.Sprintf("Logs (%d)", len(receipt.Logs))))
	for _, l := range receipt.Logs {
		ev := dec.DecodeLog(l)
		fmt.Fprintf(out, "  %s  %s  %s\n", ui.Meta(fmt.Sprintf("#%d", l.Index)), ui.Addr(ui.TruncateAddr(ev.Address)), ui.Method(ev.Name))
		switch {
		case ev.Kind == contract.KindMethod:
			printArgs(out, ev.Args)
		default:
			for i, t := range l.Topics {
				fmt.Fprintf(out, "      %s %s\n", ui.Meta(fmt.Sprintf("topic%d", i)), t.Hex())
			}
			if len(l.Data) > 0 {
				fmt.Fprintf(out, "      %s %s\n", ui.Meta("data  "), common.Bytes2Hex(l.Data))
			}
		}
		if ev.Err != nil {
			fmt.Fprintln(out, "      "+ui.Warn(ev.Err.Error()))
		}
	}
}

func methodLabel(c contract.Call) string {
	switch c.Kind {
	case contract.KindTransfer:
		return "Transfer"
	case contract.KindUnknown:
		return c.Selector
	}
	if c.Signature != "" {
		return c.Signature + "  " + c.Selector
	}
	return c.Name + "  " + c.Selector
}

func printArgs(out io.Writer, args []contract.Arg) {
	for _, a := range args {
		name := a.Name
		if a.Indexed {
			name += "*"
		}
		fmt.Fprintf(out, "      %s %s %s\n", ui.Meta(fmt.Sprintf("%-16s", name)), ui.Meta(fmt.Sprintf("%-10s", a.Type)), ui.Val(a.Value))
	}
}

func init() {
	txCmd.Flags().BoolVar(&txLogs, "logs", true, "show decoded receipt logs")
}
