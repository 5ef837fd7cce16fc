package feed

import "strings"

// DefaultAddressTransactions is how many recent transactions the active
// address list is drawn from.
const DefaultAddressTransactions = 20

// LatestAddresses returns the unique recipients and senders of entries, in
// first-seen order with each transaction's recipient before its sender.
// Contract creations have no recipient and contribute only their sender.
// Comparison ignores case; the first spelling seen is kept.
func LatestAddresses(entries []Entry) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, addr)
	}
	for _, e := range entries {
		if e.Tx == nil {
			continue
		}
		add(e.Tx.To)
		add(e.Tx.From)
	}
	return out
}
