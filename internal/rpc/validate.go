package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

// ErrInvalidRPC is returned when an endpoint cannot be used as a JSON-RPC node.
var ErrInvalidRPC = errors.New("invalid RPC")

// validateTimeout bounds the single probe made by Validate.
const validateTimeout = 5 * time.Second

// InvalidRPCError reports a failed probe. Its message is "invalid RPC on <url>";
// the underlying cause is available through errors.Unwrap.
type InvalidRPCError struct {
	URL   string
	Cause error
}

func (e *InvalidRPCError) Error() string { return "invalid RPC on " + e.URL }

// Is makes errors.Is(err, ErrInvalidRPC) hold.
func (e *InvalidRPCError) Is(target error) bool { return target == ErrInvalidRPC }

func (e *InvalidRPCError) Unwrap() error { return e.Cause }

// CheckScheme accepts http, https, ws and wss URLs with a host.
func CheckScheme(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Validate probes url with eth_chainId and returns the chain ID it reports.
func Validate(ctx context.Context, url string, opts ...chain.Option) (uint64, error) {
	if err := CheckScheme(url); err != nil {
		return 0, &InvalidRPCError{URL: url, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	c, err := chain.Dial(ctx, url, opts...)
	if err != nil {
		return 0, &InvalidRPCError{URL: url, Cause: err}
	}
	defer c.Close()

	id, err := c.ChainID(ctx)
	if err != nil {
		return 0, &InvalidRPCError{URL: url, Cause: err}
	}
	return id, nil
}
