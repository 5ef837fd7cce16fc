// feed-sweep: assembles the latest transaction feed from several RPC
// endpoints in parallel and prints how each one did.
//
// Run from the module root:
//
//	go run ./scripts/feed-sweep https://eth.llamarpc.com https://rpc.ankr.com/eth
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/feed"
)

// ── config ────────────────────────────────────────────────────────────────────

var (
	count     = pflag.IntP("count", "n", 25, "transactions to collect per endpoint")
	batchSize = pflag.Int("batch-size", feed.DefaultBatchSize, "blocks fetched concurrently per batch")
	lookback  = pflag.Int("max-lookback", 100, "maximum blocks scanned per endpoint")
	timeout   = pflag.Duration("timeout", 30*time.Second, "per-endpoint deadline")
)

// ── types ─────────────────────────────────────────────────────────────────────

type result struct {
	url     string
	network string
	head    uint64
	txs     int
	scanned int
	took    time.Duration
	err     string
}

// ── main ──────────────────────────────────────────────────────────────────────

func main() {
	pflag.Parse()
	urls := pflag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: feed-sweep [flags] <rpc-url>...")
		os.Exit(2)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
	)
	reg := chain.NewRegistry()

	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			r := sweep(reg, url)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(url)
	}
	wg.Wait()

	printTable(results)
}

func sweep(reg *chain.Registry, url string) result {
	r := result{url: url, network: "—"}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := chain.Dial(ctx, url)
	if err != nil {
		r.err = shortErr(err)
		return r
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		r.err = shortErr(err)
		return r
	}
	r.network = reg.Describe(id).DisplayName

	head, err := client.BlockNumber(ctx)
	if err != nil {
		r.err = shortErr(err)
		return r
	}
	r.head = head

	start := time.Now()
	res, err := feed.New(client).Assemble(ctx, feed.Request{
		Latest:      head,
		Count:       *count,
		BatchSize:   *batchSize,
		MaxLookback: *lookback,
	})
	r.took = time.Since(start)
	if err != nil {
		r.err = shortErr(err)
		return r
	}
	r.txs, r.scanned = len(res.Entries), res.Scanned
	if res.Exhausted {
		r.err = "short feed"
	}
	return r
}

// ── output ────────────────────────────────────────────────────────────────────

func printTable(results []result) {
	sort.Slice(results, func(i, j int) bool { return results[i].url < results[j].url })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "RPC\tNETWORK\tHEAD\tTXS\tBLOCKS\tTOOK\tNOTE")
	fmt.Fprintln(w, strings.Repeat("-", 30)+"\t"+
		strings.Repeat("-", 10)+"\t"+
		strings.Repeat("-", 10)+"\t"+
		strings.Repeat("-", 4)+"\t"+
		strings.Repeat("-", 6)+"\t"+
		strings.Repeat("-", 8)+"\t"+
		strings.Repeat("-", 12))

	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.url, r.network, r.head, r.txs, r.scanned, r.took.Round(time.Millisecond), r.err)
	}
	w.Flush()
}

// ── helpers ───────────────────────────────────────────────────────────────────

func shortErr(err error) string {
	s := err.Error()
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
