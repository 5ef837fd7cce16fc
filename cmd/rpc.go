package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/config"
	"github.com/Mohsinsiddi/w3scan/internal/rpc"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Validate, benchmark and manage RPC endpoints",
}

var rpcValidateCmd = &cobra.Command{
	Use:   "validate [url]",
	Short: "Check that an endpoint answers eth_chainId",
	Long: `Probe an endpoint once with eth_chainId. Without an argument the configured
rpc is checked.

Examples:
  w3scan rpc validate
  w3scan rpc validate https://eth.llamarpc.com
  w3scan rpc validate ws://localhost:8546`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.RPC
		if len(args) == 1 {
			url = args[0]
		}

		spin := newSpinner(cmd, "Validating "+url+"…")
		id, err := rpc.Validate(cmd.Context(), url)
		spin.Stop()
		if err != nil {
			log.Debug().Err(err).Str("rpc", url).Msg("validation failed")
			return err
		}

		network := chain.NewRegistry().Describe(id)
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s is a valid RPC: %s (chain id %d)", url, ui.ChainName(network.DisplayName), id)))
		return nil
	},
}

var rpcBenchCmd = &cobra.Command{
	Use:     "bench",
	Aliases: []string{"benchmark"},
	Short:   "Benchmark the configured endpoints and show which one would be used",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := cfg.RPCs()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render(fmt.Sprintf("Benchmarking %d RPC endpoint(s)…", len(urls))))

		ctx, cancel := context.WithTimeout(cmd.Context(), config.RPCSelectTimeout)
		defer cancel()

		results := rpc.BenchmarkEVM(ctx, urls)

		t := ui.NewTable([]ui.Column{
			{Title: "RPC URL", Width: 44},
			{Title: "Latency", Width: 10},
			{Title: "Block #", Width: 12},
			{Title: "Status", Width: 10},
		})
		for _, r := range results {
			status := ui.Success("healthy")
			latency := fmt.Sprintf("%dms", r.Latency.Milliseconds())
			block := commaSep(r.BlockNumber)
			if r.Err != nil {
				status = ui.Err("down")
				latency, block = "—", "—"
			}
			t.AddRow(ui.Row{r.URL, latency, block, status})
		}
		fmt.Fprint(out, t.Render())

		algo, err := rpc.ParseAlgorithm(cfg.RPCAlgorithm)
		if err != nil {
			return err
		}
		best, err := rpc.NewPicker(algo).Pick(rpc.ResultsToEndpoints(results))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.Info(fmt.Sprintf("%s pick: %s", algo, best.URL)))
		return nil
	},
}

var rpcListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", ui.StyleHeader.Render("Primary:"), cfg.RPC)
		if len(cfg.FallbackRPCs) == 0 {
			fmt.Fprintln(out, ui.Meta("No fallback RPCs. Add one with: w3scan rpc add <url>"))
			return nil
		}
		fmt.Fprintln(out, ui.StyleHeader.Render("Fallbacks:"))
		for _, u := range cfg.FallbackRPCs {
			fmt.Fprintf(out, "  %s\n", u)
		}
		fmt.Fprintln(out, ui.Meta("Selection algorithm: "+cfg.RPCAlgorithm))
		return nil
	},
}

var rpcAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a fallback RPC endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		if err := rpc.CheckScheme(url); err != nil {
			return err
		}
		if err := cfg.AddFallback(url); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Added fallback RPC "+url))
		return nil
	},
}

var rpcRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove a fallback RPC endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		if err := cfg.RemoveFallback(url); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Removed fallback RPC "+url))
		return nil
	},
}

func init() {
	rpcCmd.AddCommand(rpcValidateCmd, rpcBenchCmd, rpcListCmd, rpcAddCmd, rpcRemoveCmd)
}
