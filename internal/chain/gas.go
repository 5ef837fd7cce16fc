package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GasPrice returns the node's suggested legacy gas price in Wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var gp hexutil.Big
	if err := c.call(ctx, &gp, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return gp.ToInt(), nil
}

// TxCount returns the number of transactions in the block.
func (b *Block) TxCount() int { return len(b.Transactions) }

// Ago renders a unix timestamp relative to now, e.g. "12s ago".
func Ago(ts uint64, now time.Time) string { return age(ts, now) }

func age(ts uint64, now time.Time) string {
	if ts == 0 {
		return "unknown"
	}
	n := uint64(now.Unix())
	if ts > n {
		return "just now"
	}
	diff := n - ts
	switch {
	case diff < 60:
		return fmt.Sprintf("%ds ago", diff)
	case diff < 3600:
		return fmt.Sprintf("%dm ago", diff/60)
	case diff < 86400:
		return fmt.Sprintf("%dh ago", diff/3600)
	default:
		return fmt.Sprintf("%dd ago", diff/86400)
	}
}

// GasUsedPct returns gas utilisation as a percentage string.
func (b *Block) GasUsedPct() string {
	if b.GasLimit == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(b.GasUsed)/float64(b.GasLimit)*100)
}

// BurntFees returns baseFee * gasUsed, or nil on pre-EIP-1559 blocks.
func (b *Block) BurntFees() *big.Int {
	if b.BaseFee == nil {
		return nil
	}
	return new(big.Int).Mul(b.BaseFee, new(big.Int).SetUint64(b.GasUsed))
}

// WeiToGwei converts a Wei value to Gwei as float64.
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetFloat64(1e9),
	).Float64()
	return f
}
