package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/connection"
)

// MethodFunc names the method a transaction calls. Nil falls back to the raw
// selector.
type MethodFunc func(tx *chain.Transaction) string

// TxTable lays out transactions newest first as they are given.
func TxTable(txs []*chain.Transaction, method MethodFunc, now time.Time) *Table {
	t := NewTable([]Column{
		{Title: "Hash", Width: 13},
		{Title: "Block", Width: 10},
		{Title: "Age", Width: 9},
		{Title: "From", Width: 13},
		{Title: "To", Width: 13},
		{Title: "Method", Width: 20},
		{Title: "Value (ETH)", Width: 16},
	})
	for _, tx := range txs {
		block := strconv.FormatUint(tx.BlockNum, 10)
		if tx.Pending {
			block = "pending"
		}
		t.AddRow(Row{
			Addr(chain.ShortHash(tx.Hash)),
			block,
			Meta(chain.Ago(tx.Timestamp, now)),
			Addr(TruncateAddr(tx.From)),
			Addr(recipient(tx)),
			Method(methodOf(tx, method)),
			Val(chain.FormatEth(tx.Value, 6)),
		})
	}
	return t
}

func recipient(tx *chain.Transaction) string {
	if tx.To == "" {
		return "(create)"
	}
	return TruncateAddr(tx.To)
}

func methodOf(tx *chain.Transaction, method MethodFunc) string {
	if method != nil {
		if m := method(tx); m != "" {
			return m
		}
	}
	return chain.MethodName(tx.Input)
}

// BlockTable lays out blocks in the order given.
func BlockTable(blocks []*chain.Block, now time.Time) *Table {
	t := NewTable([]Column{
		{Title: "Block", Width: 10},
		{Title: "Age", Width: 9},
		{Title: "Txs", Width: 5},
		{Title: "Gas Used", Width: 16},
		{Title: "Base Fee", Width: 12},
		{Title: "Miner", Width: 13},
	})
	for _, b := range blocks {
		baseFee := "-"
		if b.BaseFee != nil {
			baseFee = fmt.Sprintf("%.2f gwei", chain.WeiToGwei(b.BaseFee))
		}
		t.AddRow(Row{
			Val(strconv.FormatUint(b.Number, 10)),
			Meta(chain.Ago(b.Timestamp, now)),
			strconv.Itoa(b.TxCount()),
			fmt.Sprintf("%d (%s)", b.GasUsed, b.GasUsedPct()),
			baseFee,
			Addr(TruncateAddr(b.Miner)),
		})
	}
	return t
}

// StatusBar renders the connection state on one line.
func StatusBar(s connection.State, network string) string {
	var sb strings.Builder
	switch s.Status {
	case connection.StatusConnected:
		sb.WriteString(StyleSuccess.Render("● connected"))
	case connection.StatusDisconnected:
		sb.WriteString(StyleError.Render("● disconnected"))
	default:
		sb.WriteString(StyleWarning.Render("● connecting"))
	}
	sb.WriteString(Meta("  " + s.RPC))
	if network != "" {
		sb.WriteString("  " + ChainName(network))
	}
	if s.Connected() {
		sb.WriteString(Meta("  head ") + Val("#"+strconv.FormatUint(s.BlockNumber, 10)))
	}
	if s.Err != nil {
		sb.WriteString("  " + StyleError.Render(trimErr(s.Err.Error())))
	}
	return sb.String()
}

// trimErr keeps the last, most specific part of a wrapped error short enough
// for a status line.
func trimErr(s string) string {
	if i := strings.LastIndex(s, ": "); i >= 0 && i+2 < len(s) {
		s = s[i+2:]
	}
	const limit = 48
	if len(s) > limit {
		return s[:limit-1] + "…"
	}
	return s
}
