package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var callFrom string

var callCmd = &cobra.Command{
	Use:   "call <address> <method|signature|calldata> [args...]",
	Short: "Run a contract method with eth_call (nothing is sent)",
	Long: `Execute a contract method against the latest block with eth_call. No
transaction is signed or sent; state-changing methods are only simulated.

The method can be given three ways:
  name          looked up in the ABI stored for the address, or ERC-20
  signature     e.g. "function balanceOf(address) view returns (uint256)"
  0x calldata   sent as-is; the result is decoded when the stored ABI knows it

Arguments are plain text: decimal or 0x integers, 0x hex bytes, true/false,
and [a,b] for arrays.

Examples:
  w3scan call 0x5FbDB2315678afecb367f032d93F642f64180aa3 totalSupply
  w3scan call 0x5FbDB2315678afecb367f032d93F642f64180aa3 balanceOf 0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266
  w3scan call 0x5FbDB2315678afecb367f032d93F642f64180aa3 "function owner() view returns (address)"
  w3scan call 0x5FbDB2315678afecb367f032d93F642f64180aa3 0x18160ddd
  w3scan call 0x5FbDB2315678afecb367f032d93F642f64180aa3 transfer 0x70997970c51812dc3a010c7d01b50e0d17dc79c8 100 \
      --from 0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid contract address %q", address)
		}
		if callFrom != "" && !common.IsHexAddress(callFrom) {
			return fmt.Errorf("invalid --from address %q", callFrom)
		}

		method, calldata, err := buildCall(address, args[1], args[2:])
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

		spin := newSpinner(cmd, "Calling contract…")
		ret, err := s.client.SimulateCall(ctx, callFrom, address, hexutil.Encode(calldata))
		spin.Stop()
		if err != nil {
			return fmt.Errorf("call failed: %w", err)
		}

		out := cmd.OutOrStdout()
		pairs := [][2]string{
			{"Contract", ui.Addr(address)},
			{"Function", ui.Method(callLabel(method, calldata))},
			{"Mode", callMode(method)},
			{"Network", s.network.DisplayName},
		}
		if callFrom != "" {
			pairs = append(pairs, [2]string{"From", ui.Addr(callFrom)})
		}
		fmt.Fprintln(out, ui.KeyValueBlock("Contract Call", pairs))
		printCallResult(out, method, ret)
		return nil
	},
}

// buildCall resolves target into calldata. The method is nil for raw
// calldata no known ABI describes.
func buildCall(address, target string, args []string) (*abi.Method, []byte, error) {
	switch {
	case strings.Contains(target, "("):
		m, err := contract.ParseMethod(target)
		if err != nil {
			return nil, nil, err
		}
		data, err := contract.PackCall(m, args)
		return &m, data, err

	case strings.HasPrefix(target, "0x"):
		if len(args) > 0 {
			return nil, nil, errors.New("raw calldata takes no further arguments")
		}
		data, err := hexutil.Decode(target)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid calldata %q: %w", target, err)
		}
		if len(data) < 4 {
			return nil, nil, fmt.Errorf("invalid calldata %q: shorter than a selector", target)
		}
		a, err := callABI(address)
		if err != nil {
			return nil, nil, err
		}
		if m, err := a.MethodById(data[:4]); err == nil {
			return m, data, nil
		}
		return nil, data, nil

	default:
		a, err := callABI(address)
		if err != nil {
			return nil, nil, err
		}
		m, err := contract.FindMethod(a, target, len(args))
		if err != nil {
			return nil, nil, err
		}
		data, err := contract.PackCall(m, args)
		return &m, data, err
	}
}

// callABI is the ABI stored for address, falling back to ERC-20.
func callABI(address string) (abi.ABI, error) {
	store, err := openStore()
	if err != nil {
		return abi.ABI{}, err
	}
	entry, err := store.Get(address)
	switch {
	case err == nil:
		return entry.Parsed()
	case !errors.Is(err, contract.ErrContractNotFound):
		return abi.ABI{}, err
	}
	erc20, _ := contract.GetBuiltin("erc20")
	return abi.JSON(strings.NewReader(erc20.ABI))
}

func callLabel(m *abi.Method, calldata []byte) string {
	if m == nil {
		return hexutil.Encode(calldata[:4])
	}
	return m.Sig
}

func callMode(m *abi.Method) string {
	if m != nil && m.IsConstant() {
		return "read"
	}
	return "simulate (no transaction sent)"
}

func printCallResult(out io.Writer, m *abi.Method, ret string) {
	data, err := hexutil.Decode(ret)
	if err != nil || len(data) == 0 {
		fmt.Fprintln(out, "  "+ui.Meta("(no return data)"))
		return
	}
	if m != nil && len(m.Outputs) > 0 {
		args, err := contract.UnpackResult(*m, data)
		if err == nil {
			fmt.Fprintln(out, "  Result")
			printArgs(out, args)
			return
		}
		fmt.Fprintln(out, ui.Warn(err.Error()))
	}
	fmt.Fprintln(out, "  Result")
	for i, w := range splitHexWords(strings.TrimPrefix(ret, "0x")) {
		fmt.Fprintf(out, "      %s 0x%s\n", ui.Meta(fmt.Sprintf("word[%d]", i)), w)
	}
}

func init() {
	callCmd.Flags().StringVar(&callFrom, "from", "", "msg.sender for the call")
}
