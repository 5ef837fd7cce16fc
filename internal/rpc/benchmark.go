package rpc

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

// BenchmarkResult holds the result of a single endpoint benchmark.
type BenchmarkResult struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Err         error
}

// BenchmarkEVM pings all URLs in parallel. Results are in the order of urls;
// a failing endpoint carries its error instead of aborting the others.
func BenchmarkEVM(ctx context.Context, urls []string, opts ...chain.Option) []BenchmarkResult {
	results := make([]BenchmarkResult, len(urls))

	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			ep, err := HealthCheck(ctx, u, 0, opts...)
			results[i] = BenchmarkResult{
				URL:         u,
				Latency:     ep.Latency,
				BlockNumber: ep.BlockNumber,
				Err:         err,
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ResultsToEndpoints converts benchmark results to picker Endpoints.
// All returned endpoints have Checked set since they have been actively tested.
func ResultsToEndpoints(results []BenchmarkResult) []Endpoint {
	endpoints := make([]Endpoint, 0, len(results))
	for _, r := range results {
		endpoints = append(endpoints, Endpoint{
			URL:         r.URL,
			Latency:     r.Latency,
			BlockNumber: r.BlockNumber,
			Healthy:     r.Err == nil,
			Checked:     true,
		})
	}
	return endpoints
}

// BestEVM benchmarks urls and returns the winner according to algo.
func BestEVM(ctx context.Context, urls []string, algo Algorithm, opts ...chain.Option) (string, error) {
	if len(urls) == 1 {
		return urls[0], nil
	}

	endpoints := ResultsToEndpoints(BenchmarkEVM(ctx, urls, opts...))
	winner, err := NewPicker(algo).Pick(endpoints)
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}
