package rpc

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

// Candidates returns primary followed by fallbacks, trimmed, without blanks
// or duplicates.
func Candidates(primary string, fallbacks []string) []string {
	seen := make(map[string]bool, len(fallbacks)+1)
	out := make([]string, 0, len(fallbacks)+1)
	for _, u := range append([]string{primary}, fallbacks...) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// SelectBest picks the RPC URL used for a session. With a single candidate it
// is returned without probing.
//
// algorithm must be one of "fastest", "round-robin", or "failover". An empty
// string defaults to "fastest".
//
// Returns ErrNoHealthyRPC when the list is empty or all endpoints fail.
func SelectBest(ctx context.Context, log zerolog.Logger, urls []string, algorithm string, opts ...chain.Option) (string, error) {
	if len(urls) == 0 {
		return "", ErrNoHealthyRPC
	}
	if len(urls) == 1 {
		return urls[0], nil
	}
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return "", err
	}

	results := BenchmarkEVM(ctx, urls, opts...)
	for _, r := range results {
		ev := log.Debug().Str("rpc", r.URL).Dur("latency", r.Latency).Uint64("head", r.BlockNumber)
		if r.Err != nil {
			ev = ev.Err(r.Err)
		}
		ev.Msg("benchmarked endpoint")
	}

	winner, err := NewPicker(algo).Pick(ResultsToEndpoints(results))
	if err != nil {
		return "", err
	}
	log.Info().Str("rpc", winner.URL).Str("algorithm", string(algo)).Msg("selected endpoint")
	return winner.URL, nil
}
