package feed_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/chaintest"
	"github.com/Mohsinsiddi/w3scan/internal/feed"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// memChain is an in-memory BlockFetcher. Heights missing from txs are empty
// blocks; heights in fail return an error.
type memChain struct {
	mu      sync.Mutex
	txs     map[uint64]int
	fail    map[uint64]error
	fetched []uint64
}

func newMemChain(txs map[uint64]int) *memChain {
	return &memChain{txs: txs, fail: map[uint64]error{}}
}

func (m *memChain) BlockByNumber(ctx context.Context, h uint64) (*chain.Block, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, h)
	err := m.fail[h]
	n := m.txs[h]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	b := &chain.Block{Number: h, Timestamp: 1_000 + h}
	for i := 0; i < n; i++ {
		b.Transactions = append(b.Transactions, &chain.Transaction{
			Hash:     txName(h, i),
			BlockNum: h,
			From:     fmt.Sprintf("0xfrom%d", h),
			To:       fmt.Sprintf("0xto%d", h),
		})
	}
	return b, nil
}

func (m *memChain) fetchedHeights() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]uint64(nil), m.fetched...)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

func txName(h uint64, i int) string { return fmt.Sprintf("tx%d_%d", h, i) }

func hashes(res *feed.Result) []string {
	out := make([]string, len(res.Entries))
	for i, e := range res.Entries {
		out[i] = e.Tx.Hash
	}
	return out
}

type countingProgress struct{ total int }

func (p *countingProgress) Add(n int) error { p.total += n; return nil }

type recorder struct {
	blocks  int
	entries int
	calls   int
}

func (r *recorder) BlocksFetched(n int) { r.blocks += n }
func (r *recorder) FeedAssembled(_ time.Duration, entries int) {
	r.calls++
	r.entries = entries
}

// ---------------------------------------------------------------------------
// scenarios
// ---------------------------------------------------------------------------

func TestAssembleStopsWhenCountReached(t *testing.T) {
	m := newMemChain(map[uint64]int{10: 1, 9: 1, 8: 1, 7: 1})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 10, Count: 3, BatchSize: 5, MaxLookback: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{"tx10_0", "tx9_0", "tx8_0"}, hashes(res))
	assert.Equal(t, []uint64{10, 9, 8, 7, 6}, m.fetchedHeights(), "one batch covering 10..6")
	assert.Equal(t, 5, res.Scanned)
	assert.False(t, res.Exhausted)
}

func TestAssembleReachesGenesis(t *testing.T) {
	m := newMemChain(map[uint64]int{2: 1, 1: 0, 0: 2})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 2, Count: 10, BatchSize: 5, MaxLookback: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{"tx2_0", "tx0_0", "tx0_1"}, hashes(res))
	assert.True(t, res.Exhausted)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, []uint64{2, 1, 0}, m.fetchedHeights())
}

func TestAssembleCursorLandingOnGenesisStops(t *testing.T) {
	m := newMemChain(map[uint64]int{5: 1, 0: 2})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 5, Count: 10, BatchSize: 5, MaxLookback: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{"tx5_0"}, hashes(res))
	assert.Equal(t, []uint64{5, 4, 3, 2, 1}, m.fetchedHeights(), "block 0 is never fetched")
	assert.Equal(t, 5, res.Scanned)
	assert.True(t, res.Exhausted)
}

func TestAssembleShortBatchReachesGenesis(t *testing.T) {
	m := newMemChain(map[uint64]int{6: 1, 0: 1})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 6, Count: 10, BatchSize: 5, MaxLookback: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{"tx6_0", "tx0_0"}, hashes(res))
	assert.Equal(t, []uint64{6, 5, 4, 3, 2, 1, 0}, m.fetchedHeights())
	assert.Equal(t, 7, res.Scanned)
}

func TestAssembleLookbackSmallerThanBatch(t *testing.T) {
	m := newMemChain(map[uint64]int{})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 100, Count: 10, BatchSize: 5, MaxLookback: 3})
	require.NoError(t, err)

	assert.Equal(t, []uint64{100, 99, 98}, m.fetchedHeights())
	assert.Equal(t, 3, res.Scanned)
	assert.True(t, res.Exhausted)
	assert.Empty(t, res.Entries)
}

func TestAssembleStopsMidBlock(t *testing.T) {
	m := newMemChain(map[uint64]int{50: 4})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 50, Count: 2, BatchSize: 1, MaxLookback: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"tx50_0", "tx50_1"}, hashes(res))
	assert.Equal(t, 1, res.Scanned)
}

func TestAssembleMultipleBatches(t *testing.T) {
	m := newMemChain(map[uint64]int{20: 1, 14: 2, 12: 1, 3: 5})
	a := feed.New(m)

	res, err := a.Assemble(context.Background(), feed.Request{Latest: 20, Count: 5, BatchSize: 4, MaxLookback: 1000})
	require.NoError(t, err)

	assert.Equal(t, []string{"tx20_0", "tx14_0", "tx14_1", "tx12_0", "tx3_0"}, hashes(res))
	assert.Equal(t, 20, res.Scanned, "batches 20..17, 16..13, 12..9, 8..5, 4..1")
	assert.False(t, res.Exhausted)
}

func TestAssembleEntriesCarryBlockTimestamp(t *testing.T) {
	m := newMemChain(map[uint64]int{7: 1, 6: 1})
	res, err := feed.New(m).Assemble(context.Background(), feed.Request{Latest: 7, Count: 2, BatchSize: 5, MaxLookback: 10})
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, uint64(1007), res.Entries[0].Timestamp)
	assert.Equal(t, uint64(7), res.Entries[0].Height)
	assert.Equal(t, uint64(1006), res.Entries[1].Timestamp)
	assert.Equal(t, []string{"tx7_0", "tx6_0"}, []string{res.Transactions()[0].Hash, res.Transactions()[1].Hash})
}

// ---------------------------------------------------------------------------
// edge cases
// ---------------------------------------------------------------------------

func TestAssembleCountZeroFetchesNothing(t *testing.T) {
	m := newMemChain(map[uint64]int{5: 3})
	res, err := feed.New(m).Assemble(context.Background(), feed.NewRequest(5, 0))
	require.NoError(t, err)

	assert.Empty(t, res.Entries)
	assert.False(t, res.Exhausted)
	assert.Empty(t, m.fetchedHeights())
}

func TestAssembleLatestZeroScansGenesisOnce(t *testing.T) {
	m := newMemChain(map[uint64]int{0: 2})
	res, err := feed.New(m).Assemble(context.Background(), feed.NewRequest(0, 10))
	require.NoError(t, err)

	assert.Equal(t, []string{"tx0_0", "tx0_1"}, hashes(res))
	assert.Equal(t, []uint64{0}, m.fetchedHeights())
	assert.True(t, res.Exhausted)
}

func TestAssembleMaxLookbackZero(t *testing.T) {
	m := newMemChain(map[uint64]int{5: 3})
	res, err := feed.New(m).Assemble(context.Background(), feed.Request{Latest: 5, Count: 1, BatchSize: 5, MaxLookback: 0})
	require.NoError(t, err)

	assert.Empty(t, res.Entries)
	assert.True(t, res.Exhausted)
	assert.Empty(t, m.fetchedHeights())
}

func TestAssembleEmptyChain(t *testing.T) {
	m := newMemChain(map[uint64]int{})
	res, err := feed.New(m).Assemble(context.Background(), feed.NewRequest(12, 10))
	require.NoError(t, err)

	assert.Empty(t, res.Entries)
	assert.Equal(t, 13, res.Scanned)
	assert.True(t, res.Exhausted)
}

// ---------------------------------------------------------------------------
// invariants
// ---------------------------------------------------------------------------

func TestAssembleInvariants(t *testing.T) {
	txs := map[uint64]int{}
	for h := uint64(0); h <= 40; h++ {
		txs[h] = int(h % 3)
	}

	for _, latest := range []uint64{0, 1, 4, 5, 6, 17, 40} {
		for _, count := range []int{0, 1, 3, 7, 100} {
			for _, batch := range []int{1, 2, 5, 9} {
				for _, lookback := range []int{0, 1, 3, 10, 1000} {
					name := fmt.Sprintf("latest=%d/count=%d/batch=%d/lookback=%d", latest, count, batch, lookback)
					t.Run(name, func(t *testing.T) {
						m := newMemChain(txs)
						req := feed.Request{Latest: latest, Count: count, BatchSize: batch, MaxLookback: lookback}
						res, err := feed.New(m).Assemble(context.Background(), req)
						require.NoError(t, err)

						assert.LessOrEqual(t, len(res.Entries), count)
						fetched := m.fetchedHeights()
						assert.LessOrEqual(t, len(fetched), lookback)
						assert.Equal(t, len(fetched), res.Scanned)
						assert.Equal(t, len(res.Entries) < count, res.Exhausted)

						seen := map[uint64]bool{}
						for _, h := range fetched {
							assert.LessOrEqual(t, h, latest)
							assert.False(t, seen[h], "height %d fetched twice", h)
							seen[h] = true
						}
						if latest > 0 && latest%uint64(batch) == 0 {
							assert.False(t, seen[0], "a batch never starts at height 0")
						}

						for i := 1; i < len(res.Entries); i++ {
							prev, cur := res.Entries[i-1], res.Entries[i]
							assert.GreaterOrEqual(t, prev.Height, cur.Height)
						}

						again, err := feed.New(newMemChain(txs)).Assemble(context.Background(), req)
						require.NoError(t, err)
						assert.Equal(t, hashes(res), hashes(again), "assembling is idempotent")
					})
				}
			}
		}
	}
}

// ---------------------------------------------------------------------------
// errors
// ---------------------------------------------------------------------------

func TestAssembleRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  feed.Request
	}{
		{"negative count", feed.Request{Latest: 5, Count: -1, BatchSize: 5, MaxLookback: 10}},
		{"zero batch", feed.Request{Latest: 5, Count: 1, BatchSize: 0, MaxLookback: 10}},
		{"negative lookback", feed.Request{Latest: 5, Count: 1, BatchSize: 5, MaxLookback: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemChain(map[uint64]int{5: 1})
			_, err := feed.New(m).Assemble(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, feed.ErrInvalidRequest)
			assert.Empty(t, m.fetchedHeights(), "nothing fetched before validation")
		})
	}
}

func TestAssembleFetchFailureFailsRequest(t *testing.T) {
	m := newMemChain(map[uint64]int{10: 1, 9: 1})
	boom := errors.New("connection refused")
	m.fail[8] = boom

	res, err := feed.New(m).Assemble(context.Background(), feed.NewRequest(10, 5))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "block 8")
}

func TestAssembleFailureInLaterBatch(t *testing.T) {
	m := newMemChain(map[uint64]int{10: 1})
	m.fail[3] = errors.New("timeout")

	_, err := feed.New(m).Assemble(context.Background(), feed.Request{Latest: 10, Count: 5, BatchSize: 5, MaxLookback: 100})
	require.Error(t, err)
}

type nilFetcher struct{}

func (nilFetcher) BlockByNumber(context.Context, uint64) (*chain.Block, error) { return nil, nil }

func TestAssembleMissingBlockIsError(t *testing.T) {
	_, err := feed.New(nilFetcher{}).Assemble(context.Background(), feed.NewRequest(3, 1))
	assert.ErrorIs(t, err, chain.ErrBlockNotFound)
}

func TestAssembleCanceledContext(t *testing.T) {
	m := newMemChain(map[uint64]int{10: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := feed.New(m).Assemble(ctx, feed.NewRequest(10, 5))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.fetchedHeights())
}

// ---------------------------------------------------------------------------
// options
// ---------------------------------------------------------------------------

func TestAssembleReportsProgressAndStats(t *testing.T) {
	m := newMemChain(map[uint64]int{2: 1, 0: 1})
	p := &countingProgress{}
	r := &recorder{}

	res, err := feed.New(m, feed.WithProgress(p), feed.WithRecorder(r)).
		Assemble(context.Background(), feed.NewRequest(2, 10))
	require.NoError(t, err)

	assert.Equal(t, 3, p.total)
	assert.Equal(t, 3, r.blocks)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, len(res.Entries), r.entries)
}

// ---------------------------------------------------------------------------
// over JSON-RPC
// ---------------------------------------------------------------------------

func TestAssembleOverRPC(t *testing.T) {
	srv := chaintest.NewServer(t)
	from := "0xaaaa000000000000000000000000000000000001"
	to := "0xbbbb000000000000000000000000000000000002"
	srv.AddBlock(chaintest.Block(0, 100, chaintest.Tx(chaintest.Hash("g", 0), from, to)))
	srv.AddBlock(chaintest.Block(1, 112))
	srv.AddBlock(chaintest.Block(2, 124, chaintest.Tx(chaintest.Hash("a", 2), from, to), chaintest.Tx(chaintest.Hash("b", 2), to, from)))

	c, err := chain.Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	res, err := feed.New(c).Assemble(context.Background(), feed.NewRequest(2, 10))
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, chaintest.Hash("a", 2), res.Entries[0].Tx.Hash)
	assert.Equal(t, chaintest.Hash("b", 2), res.Entries[1].Tx.Hash)
	assert.Equal(t, chaintest.Hash("g", 0), res.Entries[2].Tx.Hash)
	assert.Equal(t, uint64(100), res.Entries[2].Timestamp)
	assert.Equal(t, 3, srv.Calls("eth_getBlockByNumber"))
}
