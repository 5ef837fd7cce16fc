package rpc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoHealthyRPC means every configured endpoint is down or lagging.
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")

// Algorithm is the rpc_algorithm config value.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"

	// Heads further behind the tallest one than this are ignored.
	staleBlockThreshold = 3
	// How long a fastest-pick winner is reused.
	cacheTTL = 5 * time.Minute
)

// ParseAlgorithm maps a config value to an Algorithm. Empty means fastest.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case "":
		return AlgorithmFastest, nil
	case AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover:
		return a, nil
	default:
		return "", fmt.Errorf("unknown RPC algorithm %q (want fastest, round-robin or failover)", s)
	}
}

// Endpoint is one configured URL plus whatever the last check measured.
// An endpoint that was never checked counts as usable.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Healthy     bool
	Checked     bool
}

func (e *Endpoint) usable() bool { return !e.Checked || e.Healthy }

// Picker chooses one endpoint per call. It is safe for concurrent use.
type Picker struct {
	algo Algorithm
	now  func() time.Time

	mu    sync.Mutex
	next  int // round-robin position
	last  string
	until time.Time
	hook  func()
}

func NewPicker(algo Algorithm) *Picker {
	return &Picker{algo: algo, now: time.Now}
}

// OnBenchmark sets fn to run whenever the fastest pick compares endpoints
// instead of reusing its last winner.
func (p *Picker) OnBenchmark(fn func()) {
	p.mu.Lock()
	p.hook = fn
	p.mu.Unlock()
}

// Pick returns an element of endpoints, or ErrNoHealthyRPC.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoHealthyRPC
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var e *Endpoint
	switch p.algo {
	case AlgorithmRoundRobin:
		e = p.rotate(endpoints)
	case AlgorithmFailover:
		e = firstUsable(endpoints)
	default:
		e = p.fastest(endpoints)
	}
	if e == nil {
		return nil, ErrNoHealthyRPC
	}
	return e, nil
}

// fastest reuses the previous winner while it is fresh and still usable,
// otherwise scores every usable endpoint on a current head.
func (p *Picker) fastest(endpoints []Endpoint) *Endpoint {
	if p.last != "" && p.now().Before(p.until) {
		for i := range endpoints {
			if e := &endpoints[i]; e.URL == p.last && e.usable() {
				return e
			}
		}
	}
	if p.hook != nil {
		p.hook()
	}

	pool := healthyEndpoints(endpoints)
	var tip uint64
	for _, e := range pool {
		tip = max(tip, e.BlockNumber)
	}

	var best *Endpoint
	var top float64
	for _, e := range pool {
		if stale(e.BlockNumber, tip) {
			continue
		}
		if s := score(e, tip); best == nil || s > top {
			best, top = e, s
		}
	}
	if best != nil {
		p.last, p.until = best.URL, p.now().Add(cacheTTL)
	}
	return best
}

func (p *Picker) rotate(endpoints []Endpoint) *Endpoint {
	pool := healthyEndpoints(endpoints)
	if len(pool) == 0 {
		return nil
	}
	i := p.next % len(pool)
	p.next = (i + 1) % len(pool)
	return pool[i]
}

// firstUsable keeps list order: the primary wins until a check marks it down.
func firstUsable(endpoints []Endpoint) *Endpoint {
	for i := range endpoints {
		if e := &endpoints[i]; e.usable() {
			return e
		}
	}
	return nil
}

// score is 1000/latency-in-ms minus the number of blocks behind tip.
// Sub-millisecond latency counts as 1ms.
func score(e *Endpoint, tip uint64) float64 {
	var s float64
	if ms := e.Latency.Milliseconds(); ms > 0 {
		s = 1000 / float64(ms)
	} else if e.Latency > 0 {
		s = 1000
	}
	if tip > 0 {
		s -= float64(tip - e.BlockNumber)
	}
	return s
}

func healthyEndpoints(endpoints []Endpoint) []*Endpoint {
	var out []*Endpoint
	for i := range endpoints {
		if e := &endpoints[i]; e.usable() {
			out = append(out, e)
		}
	}
	return out
}
