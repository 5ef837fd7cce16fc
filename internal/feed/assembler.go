// Package feed assembles the "latest transactions" list by scanning
// backward from a head block in concurrently fetched batches.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

const (
	DefaultBatchSize   = 5
	DefaultMaxLookback = 1000
)

// ErrInvalidRequest is returned before any fetch when a Request breaks its constraints.
var ErrInvalidRequest = errors.New("invalid feed request")

// BlockFetcher loads a single block with its full transaction list.
type BlockFetcher interface {
	BlockByNumber(ctx context.Context, height uint64) (*chain.Block, error)
}

// Progress is told how many blocks each finished batch fetched.
type Progress interface {
	Add(n int) error
}

// Recorder receives scan statistics.
type Recorder interface {
	BlocksFetched(n int)
	FeedAssembled(took time.Duration, entries int)
}

// Request describes one backward scan.
type Request struct {
	Latest      uint64
	Count       int `validate:"gte=0"`
	BatchSize   int `validate:"gte=1"`
	MaxLookback int `validate:"gte=0"`
}

// NewRequest returns a request for count transactions at or below latest
// using the default batch size and lookback ceiling.
func NewRequest(latest uint64, count int) Request {
	return Request{
		Latest:      latest,
		Count:       count,
		BatchSize:   DefaultBatchSize,
		MaxLookback: DefaultMaxLookback,
	}
}

// Entry is one transaction paired with its block's height and timestamp.
type Entry struct {
	Tx        *chain.Transaction
	Height    uint64
	Timestamp uint64
}

// Result is the outcome of a scan. Entries are ordered by descending height,
// then by position inside the block.
type Result struct {
	Entries   []Entry
	Scanned   int
	Exhausted bool // fewer than Count entries were found before the ceiling or genesis
}

// Transactions returns the entries' transactions in feed order.
func (r *Result) Transactions() []*chain.Transaction {
	out := make([]*chain.Transaction, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Tx
	}
	return out
}

// Assembler runs backward scans. It keeps no state between calls and is safe
// for concurrent use.
type Assembler struct {
	fetcher  BlockFetcher
	log      zerolog.Logger
	progress Progress
	recorder Recorder
	validate *validator.Validate
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for per-batch debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Assembler) { a.log = log }
}

// WithProgress reports fetched block counts to p.
func WithProgress(p Progress) Option {
	return func(a *Assembler) { a.progress = p }
}

// WithRecorder reports scan statistics to r.
func WithRecorder(r Recorder) Option {
	return func(a *Assembler) { a.recorder = r }
}

// New creates an Assembler reading blocks from f.
func New(f BlockFetcher, opts ...Option) *Assembler {
	a := &Assembler{
		fetcher:  f,
		log:      zerolog.Nop(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble collects up to req.Count transactions, newest first, walking down
// from req.Latest. The cursor drops by req.BatchSize after every batch and the
// walk ends once it would reach 0, so a cursor landing exactly on 0 does not
// start another batch. It never fetches more than req.MaxLookback blocks.
// Any fetch error fails the whole call.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	start := time.Now()
	res := &Result{Entries: make([]Entry, 0, min(req.Count, 256))}

	cursor, more := req.Latest, true
	for more && len(res.Entries) < req.Count && res.Scanned < req.MaxLookback {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		heights := batchHeights(cursor, req.BatchSize, req.MaxLookback-res.Scanned)
		blocks, err := a.fetchBatch(ctx, heights)
		if err != nil {
			return nil, err
		}
		res.Scanned += len(blocks)

		res.Entries = collect(res.Entries, blocks, req.Count)

		a.log.Debug().
			Uint64("from", heights[0]).
			Uint64("to", heights[len(heights)-1]).
			Int("scanned", res.Scanned).
			Int("collected", len(res.Entries)).
			Msg("scanned batch")

		// Height 0 is only scanned as part of a batch that starts above it,
		// or when the walk begins there.
		if cursor <= uint64(req.BatchSize) {
			more = false
		} else {
			cursor -= uint64(req.BatchSize)
		}
	}

	res.Exhausted = len(res.Entries) < req.Count
	if a.recorder != nil {
		a.recorder.FeedAssembled(time.Since(start), len(res.Entries))
	}
	return res, nil
}

// batchHeights returns cursor, cursor-1, ... down to at most size heights,
// never below zero and never more than budget.
func batchHeights(cursor uint64, size, budget int) []uint64 {
	n := size
	if budget < n {
		n = budget
	}
	if cursor < math.MaxUint64 && uint64(n) > cursor+1 {
		n = int(cursor + 1)
	}
	heights := make([]uint64, n)
	for i := range heights {
		heights[i] = cursor - uint64(i)
	}
	return heights
}

// fetchBatch loads every height concurrently. The returned blocks are in the
// same order as heights.
func (a *Assembler) fetchBatch(ctx context.Context, heights []uint64) ([]*chain.Block, error) {
	blocks := make([]*chain.Block, len(heights))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range heights {
		g.Go(func() error {
			b, err := a.fetcher.BlockByNumber(gctx, h)
			if err != nil {
				return fmt.Errorf("fetching block %d: %w", h, err)
			}
			if b == nil {
				return fmt.Errorf("fetching block %d: %w", h, chain.ErrBlockNotFound)
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.progress != nil {
		_ = a.progress.Add(len(blocks))
	}
	if a.recorder != nil {
		a.recorder.BlocksFetched(len(blocks))
	}
	return blocks, nil
}

func collect(entries []Entry, blocks []*chain.Block, count int) []Entry {
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			if len(entries) >= count {
				return entries
			}
			entries = append(entries, Entry{Tx: tx, Height: b.Number, Timestamp: b.Timestamp})
		}
	}
	return entries
}
