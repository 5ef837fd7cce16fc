package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var selectorEvent bool

var selectorCmd = &cobra.Command{
	Use:   "selector <signature-or-selector>",
	Short: "Compute or look up a 4-byte function selector",
	Long: `Compute a 4-byte function selector (or, with --event, a topic0 hash) from a
signature, or look up a selector in the decoder's tables.

Parameter names are ignored: "transfer(address to, uint256 amount)" and
"transfer(address,uint256)" give the same selector.

Examples:
  w3scan selector "transfer(address,uint256)"     # 0xa9059cbb
  w3scan selector "balanceOf(address owner)"      # 0x70a08231
  w3scan selector --event "Transfer(address indexed from, address indexed to, uint256 value)"
  w3scan selector 0xa9059cbb                      # transfer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.TrimSpace(args[0])
		out := cmd.OutOrStdout()

		if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
			if len(input) != 10 {
				return fmt.Errorf("invalid selector %q: expected 0x followed by 8 hex characters", input)
			}
			dec, err := newDecoder()
			if err != nil {
				return err
			}
			call := dec.DecodeCall("", strings.ToLower(input))
			// A bare selector has no arguments, so only a hex error matters.
			if call.Err != nil && call.Kind == contract.KindUnknown {
				return fmt.Errorf("invalid selector %q: %w", input, call.Err)
			}
			name := call.Name
			if call.Signature != "" {
				name = call.Signature
			}
			if call.Kind == contract.KindUnknown {
				name = ui.Meta("(unknown)")
			}
			fmt.Fprintln(out, ui.KeyValueBlock("Selector Lookup", [][2]string{
				{"Selector", call.Selector},
				{"Method", ui.Val(name)},
			}))
			return nil
		}

		if !strings.Contains(input, "(") || !strings.HasSuffix(input, ")") {
			return fmt.Errorf("invalid signature %q: expected name(type,...)", input)
		}
		sig := contract.NormalizeSignature(input)
		if selectorEvent {
			fmt.Fprintln(out, ui.KeyValueBlock("Event Topic", [][2]string{
				{"Signature", sig},
				{"Topic0", ui.Val(contract.EventTopic(sig).Hex())},
			}))
			return nil
		}
		fmt.Fprintln(out, ui.KeyValueBlock("Function Selector", [][2]string{
			{"Signature", sig},
			{"Selector", ui.Val(contract.Selector(sig))},
		}))
		return nil
	},
}

func init() {
	selectorCmd.Flags().BoolVar(&selectorEvent, "event", false, "compute an event topic0 instead of a function selector")
}
