package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ms = time.Millisecond

func ep(url string, latency time.Duration, head uint64) Endpoint {
	return Endpoint{URL: url, Latency: latency, BlockNumber: head}
}

func down(url string) Endpoint {
	return Endpoint{URL: url, Checked: true}
}

func up(e Endpoint) Endpoint {
	e.Checked, e.Healthy = true, true
	return e
}

func TestPickFastest(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []Endpoint
		want      string
	}{
		{
			name: "lowest latency",
			endpoints: []Endpoint{
				ep("http://anvil:8545", 200*ms, 100),
				ep("http://reth:8545", 30*ms, 100),
				ep("http://geth:8545", 80*ms, 100),
			},
			want: "http://reth:8545",
		},
		{
			name: "head lag costs a point per block",
			endpoints: []Endpoint{
				ep("http://a", 10*ms, 98),  // 100 - 2
				ep("http://b", 20*ms, 100), // 50
			},
			want: "http://a",
		},
		{
			name: "stale head is dropped even when fastest",
			endpoints: []Endpoint{
				up(ep("http://fresh", 50*ms, 1000)),
				up(ep("http://lagging", 5*ms, 990)),
			},
			want: "http://fresh",
		},
		{
			name: "unhealthy skipped",
			endpoints: []Endpoint{
				down("http://dead"),
				up(ep("http://alive", 400*ms, 7)),
			},
			want: "http://alive",
		},
		{
			name: "sub-millisecond latency",
			endpoints: []Endpoint{
				ep("http://local", 300*time.Microsecond, 5),
				ep("http://remote", 2*ms, 5),
			},
			want: "http://local",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPicker(AlgorithmFastest).Pick(tt.endpoints)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.URL)
		})
	}
}

func TestPickFastestCachesWinner(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	p := NewPicker(AlgorithmFastest)
	p.now = func() time.Time { return clock }
	runs := 0
	p.OnBenchmark(func() { runs++ })

	endpoints := []Endpoint{ep("http://a", 20*ms, 10), ep("http://b", 40*ms, 10)}
	for range 3 {
		got, err := p.Pick(endpoints)
		require.NoError(t, err)
		assert.Equal(t, "http://a", got.URL)
	}
	assert.Equal(t, 1, runs)

	// The cached winner went down.
	endpoints[0] = down("http://a")
	got, err := p.Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://b", got.URL)
	assert.Equal(t, 2, runs)

	// Expiry forces a fresh comparison.
	endpoints[0] = ep("http://a", 1*ms, 10)
	clock = clock.Add(cacheTTL + time.Second)
	got, err = p.Pick(endpoints)
	require.NoError(t, err)
	assert.Equal(t, "http://a", got.URL)
	assert.Equal(t, 3, runs)
}

func TestPickRoundRobin(t *testing.T) {
	p := NewPicker(AlgorithmRoundRobin)
	endpoints := []Endpoint{up(ep("http://1", 0, 1)), down("http://2"), up(ep("http://3", 0, 1))}

	var got []string
	for range 4 {
		e, err := p.Pick(endpoints)
		require.NoError(t, err)
		got = append(got, e.URL)
	}
	assert.Equal(t, []string{"http://1", "http://3", "http://1", "http://3"}, got)
}

func TestPickFailover(t *testing.T) {
	p := NewPicker(AlgorithmFailover)

	got, err := p.Pick([]Endpoint{down("http://primary"), ep("http://backup", 0, 0), ep("http://last", 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, "http://backup", got.URL)

	got, err = p.Pick([]Endpoint{ep("http://primary", 0, 0), ep("http://backup", 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, "http://primary", got.URL)
}

func TestPickNoHealthyEndpoint(t *testing.T) {
	for _, algo := range []Algorithm{AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover} {
		p := NewPicker(algo)
		_, err := p.Pick(nil)
		assert.ErrorIs(t, err, ErrNoHealthyRPC, algo)
		_, err = p.Pick([]Endpoint{down("http://a"), down("http://b")})
		assert.ErrorIs(t, err, ErrNoHealthyRPC, algo)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]Algorithm{
		"":            AlgorithmFastest,
		"fastest":     AlgorithmFastest,
		"round-robin": AlgorithmRoundRobin,
		"failover":    AlgorithmFailover,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseAlgorithm("random")
	assert.ErrorContains(t, err, `unknown RPC algorithm "random"`)
}
