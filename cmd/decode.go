package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var decodeAddress string

var decodeCmd = &cobra.Command{
	Use:   "decode <calldata>",
	Short: "Decode EVM calldata into a method call",
	Long: `Decode raw calldata (hex) with the selector table: stored ABIs (the one for
--address first), the bundled ERC-20/ERC-721 ABIs and well-known selectors.
No RPC call is made.

Examples:
  w3scan decode 0xa9059cbb000000000000000000000000d8da6bf26964af9d7eed9e03e53415d37aa960450000000000000000000000000000000000000000000000000de0b6b3a7640000
  w3scan decode 0x095ea7b3
  w3scan decode "$CALLDATA" --address 0x5FbDB2315678afecb367f032d93F642f64180aa3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		calldata := strings.TrimSpace(args[0])
		if strings.TrimPrefix(calldata, "0x") == "" {
			return fmt.Errorf("empty calldata: provide a hex string starting with 0x")
		}
		if !strings.HasPrefix(calldata, "0x") {
			calldata = "0x" + calldata
		}

		dec, err := newDecoder()
		if err != nil {
			return err
		}
		call := dec.DecodeCall(decodeAddress, calldata)
		if call.Err != nil && call.Kind == contract.KindUnknown {
			return call.Err
		}

		out := cmd.OutOrStdout()
		pairs := [][2]string{
			{"Method", ui.Method(methodLabel(call))},
			{"Match", call.Kind.String()},
		}
		fmt.Fprintln(out, ui.KeyValueBlock("Decoded Calldata", pairs))

		switch {
		case call.Kind == contract.KindMethod:
			printArgs(out, call.Args)
		case len(calldata) > 10:
			// Undecoded: show the raw argument words.
			for i, w := range splitHexWords(calldata[10:]) {
				fmt.Fprintf(out, "      %s 0x%s\n", ui.Meta(fmt.Sprintf("word[%d]", i)), w)
			}
		}
		if call.Err != nil {
			fmt.Fprintln(out, ui.Warn("could not decode arguments: "+call.Err.Error()))
		}
		return nil
	},
}

// splitHexWords splits a hex string into 64-char (32-byte) words. A trailing
// partial word is kept.
func splitHexWords(hex string) []string {
	var words []string
	for len(hex) > 64 {
		words = append(words, hex[:64])
		hex = hex[64:]
	}
	if hex != "" {
		words = append(words, hex)
	}
	return words
}

func init() {
	decodeCmd.Flags().StringVar(&decodeAddress, "address", "", "contract the calldata was sent to; its stored ABI is tried first")
}
