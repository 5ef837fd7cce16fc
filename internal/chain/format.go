package chain

import (
	"math/big"
	"strings"
)

var eth1 = new(big.Float).SetFloat64(1e18)

// DefaultEthDecimals is the precision FormatEth renders with when none is given.
const DefaultEthDecimals = 8

// WeiToETH renders wei as a full-precision ETH decimal string.
func WeiToETH(wei *big.Int) string {
	return weiToETH(wei)
}

func weiToETH(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, eth1)
	return f.Text('f', 18)
}

// FormatEth renders wei in ETH with at most decimals fractional digits,
// trailing zeros trimmed.
func FormatEth(wei *big.Int, decimals int) string {
	if wei == nil {
		return "0"
	}
	if decimals < 0 {
		decimals = DefaultEthDecimals
	}
	neg := wei.Sign() < 0
	abs := new(big.Int).Abs(wei)

	whole, frac := new(big.Int).QuoRem(abs, big.NewInt(1e18), new(big.Int))
	fs := frac.String()
	fs = strings.Repeat("0", 18-len(fs)) + fs
	if decimals < 18 {
		fs = fs[:decimals]
	}
	fs = strings.TrimRight(fs, "0")

	out := whole.String()
	if fs != "" {
		out += "." + fs
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// MethodName returns "Transfer" for plain value sends and the 4-byte
// selector for anything carrying calldata.
func MethodName(input string) string {
	if input == "" || input == "0x" {
		return "Transfer"
	}
	clean := strings.TrimPrefix(input, "0x")
	if len(clean) < 8 {
		return "call"
	}
	return "0x" + strings.ToLower(clean[:8])
}

// ShortHash shortens a hash or address to 0x1234…abcd form.
func ShortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}
