package contract

import "sort"

// BuiltinKind describes a standard interface whose ABI is embedded in the
// binary. New built-ins register themselves via init() in their own
// <name>_abi.go file.
type BuiltinKind struct {
	ID          string // machine key, e.g. "erc20"
	Name        string // human label
	Description string // one-line summary shown by `abi add --builtin`
	ABI         string // JSON ABI array
}

var builtinRegistry = map[string]BuiltinKind{}

// RegisterBuiltin adds a built-in ABI to the global registry.
func RegisterBuiltin(b BuiltinKind) {
	builtinRegistry[b.ID] = b
}

// GetBuiltin returns a built-in by ID. ok is false if not found.
func GetBuiltin(id string) (BuiltinKind, bool) {
	b, ok := builtinRegistry[id]
	return b, ok
}

// AllBuiltins returns all registered built-ins sorted by ID.
func AllBuiltins() []BuiltinKind {
	out := make([]BuiltinKind, 0, len(builtinRegistry))
	for _, b := range builtinRegistry {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// knownMethods maps 4-byte selectors of common calls to their names. They
// decode to a name only, without arguments.
var knownMethods = map[string]string{
	"0x39509351": "increaseAllowance",
	"0xa457c2d7": "decreaseAllowance",
	"0x7ff36ab5": "swapExactETHForTokens",
	"0x18cbafe5": "swapExactTokensForETH",
	"0x38ed1739": "swapExactTokensForTokens",
	"0xfb3bdb41": "swapETHForExactTokens",
	"0x8803dbee": "swapTokensForExactTokens",
	"0x5c11d795": "swapExactTokensForTokensSupportingFeeOnTransferTokens",
	"0xb6f9de95": "swapExactETHForTokensSupportingFeeOnTransferTokens",
	"0x791ac947": "swapExactTokensForETHSupportingFeeOnTransferTokens",
	"0x414bf389": "exactInputSingle", // Uniswap V3
	"0xdb3e2198": "exactOutputSingle",
	"0xac9650d8": "multicall",
	"0x5ae401dc": "multicall", // Uniswap V3 multicall
	"0x12aa3caf": "swap",      // 1inch v5
	"0x0502b1c5": "unoswap",   // 1inch
	"0xe8e33700": "addLiquidity",
	"0xf305d719": "addLiquidityETH",
	"0xbaa2abde": "removeLiquidity",
	"0x02751cec": "removeLiquidityETH",
	"0x6a627842": "mint",
	"0x42966c68": "burn",
	"0x4e71d92d": "claim",
	"0x3d18b912": "getReward",
	"0xe9fad8ee": "exit",
	"0xa694fc3a": "stake",
	"0x2e1a7d4d": "withdraw",
	"0xd0e30db0": "deposit",
	"0xb6b55f25": "deposit",
	"0x4e487b71": "Panic",
	"0x08c379a0": "Error",
}

// knownEvents are common event signatures decoded to a name only.
var knownEvents = []string{
	"OwnershipTransferred(address,address)",
	"Upgraded(address)",
	"AdminChanged(address,address)",
	"Initialized(uint8)",
	"Paused(address)",
	"Unpaused(address)",
	"RoleGranted(bytes32,address,address)",
	"RoleRevoked(bytes32,address,address)",
	"Deposit(address,uint256)",
	"Withdrawal(address,uint256)",
	"Swap(address,uint256,uint256,uint256,uint256,address)",
}
