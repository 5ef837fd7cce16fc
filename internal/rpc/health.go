package rpc

import (
	"context"
	"time"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

const healthTimeout = 5 * time.Second

// HealthCheck pings a single RPC and reports whether it is usable.
// A node is healthy if it answers within the timeout and its head is no more
// than staleBlockThreshold behind bestBlock (pass 0 to skip the recency check).
func HealthCheck(ctx context.Context, url string, bestBlock uint64, opts ...chain.Option) (Endpoint, error) {
	ep := Endpoint{URL: url, Checked: true}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	c, err := chain.Dial(ctx, url, opts...)
	if err != nil {
		return ep, err
	}
	defer c.Close()

	ep.Latency, ep.BlockNumber, err = c.Ping(ctx)
	ep.Healthy = err == nil && !stale(ep.BlockNumber, bestBlock)
	return ep, err
}

func stale(block, best uint64) bool {
	return best > block && best-block > staleBlockThreshold
}
