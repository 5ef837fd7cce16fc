package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/config"
	"github.com/Mohsinsiddi/w3scan/internal/contract"
	"github.com/Mohsinsiddi/w3scan/internal/ens"
	"github.com/Mohsinsiddi/w3scan/internal/rpc"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

// session is one command's connection to the selected node.
type session struct {
	client  *chain.Client
	network chain.Network
}

func (s *session) Close() { s.client.Close() }

// connect picks the best configured endpoint, dials it and identifies the
// chain. Any failure on the chosen endpoint is reported as an invalid RPC.
func connect(ctx context.Context, opts ...chain.Option) (*session, error) {
	selectCtx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
	url, err := rpc.SelectBest(selectCtx, log, cfg.RPCs(), cfg.RPCAlgorithm, opts...)
	cancel()
	if err != nil {
		return nil, err
	}
	if err := rpc.CheckScheme(url); err != nil {
		return nil, err
	}

	client, err := chain.Dial(ctx, url, opts...)
	if err != nil {
		return nil, &rpc.InvalidRPCError{URL: url, Cause: err}
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, &rpc.InvalidRPCError{URL: url, Cause: err}
	}

	network := chain.NewRegistry().Describe(id)
	log.Debug().Str("rpc", url).Uint64("chain_id", id).Str("network", network.Name).Msg("connected")
	return &session{client: client, network: network}, nil
}

// commandContext bounds a one-shot command.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), config.CommandTimeout)
}

// statusWriter is where spinners and progress bars draw: stderr when it is a
// terminal, nowhere otherwise.
func statusWriter(cmd *cobra.Command) io.Writer {
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return f
	}
	return io.Discard
}

func newSpinner(cmd *cobra.Command, msg string) *ui.Spinner {
	s := ui.NewSpinner(statusWriter(cmd), msg)
	s.Start()
	return s
}

// openStore loads the ABI store next to the config file.
func openStore() (*contract.Store, error) {
	store := contract.NewStore(cfg.ContractsPath())
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading ABI store: %w", err)
	}
	return store, nil
}

// newDecoder returns a decoder that knows every stored ABI. Stored entries
// that fail to parse are logged and skipped.
func newDecoder() (*contract.Decoder, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	dec := contract.NewDecoder()
	if err := dec.LoadStore(store); err != nil {
		log.Warn().Err(err).Msg("some stored ABIs could not be loaded")
	}
	return dec, nil
}

// methodNamer renders a transaction's method through dec.
func methodNamer(dec *contract.Decoder) ui.MethodFunc {
	return func(tx *chain.Transaction) string {
		call := dec.DecodeCall(tx.To, tx.Input)
		switch call.Kind {
		case contract.KindTransfer:
			return "Transfer"
		case contract.KindUnknown:
			return call.Selector
		}
		return call.Name
	}
}

func newResolver(s *session) *ens.Resolver {
	return ens.NewResolver(s.client, log)
}
