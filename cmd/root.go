package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/config"
	"github.com/Mohsinsiddi/w3scan/internal/logging"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3scan/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir   string
	rpcFlag  string
	logLevel string
	verbose  bool

	cfg *config.Config
	log = zerolog.Nop()
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3scan",
	Short: "A terminal block explorer for any EVM JSON-RPC node",
	Long: `w3scan — browse blocks, transactions, addresses and contract events of any
Ethereum-compatible node from the terminal.

Point it at a node with --rpc (or W3SCAN_RPC, or "w3scan config set rpc <url>").
http(s):// and ws(s):// endpoints are supported; the default is a local
anvil/hardhat node on http://localhost:8545.

Run without a sub-command to open the live dashboard.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir,
			config.Binding{Key: "rpc", Flag: cmd.Flags().Lookup("rpc")},
			config.Binding{Key: "log_level", Flag: cmd.Flags().Lookup("log-level")},
		)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// config commands must keep working so a broken file can be repaired.
		if !underConfig(cmd) {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config in %s: %w", cfg.Path(), err)
			}
		}
		log, err = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, verbose)
		if err != nil {
			log, _ = logging.New(cmd.ErrOrStderr(), "", verbose)
		}
		log.Debug().Str("config", cfg.Path()).Str("rpc", cfg.RPC).Msg("config loaded")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard(cmd)
	},
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func underConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default: ~/.w3scan)")
	rootCmd.PersistentFlags().StringVar(&rpcFlag, "rpc", "", "JSON-RPC endpoint (overrides config and W3SCAN_RPC)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	rootCmd.AddCommand(
		dashboardCmd,
		txsCmd,
		blocksCmd,
		blockCmd,
		txCmd,
		addressCmd,
		addressesCmd,
		searchCmd,
		abiCmd,
		decodeCmd,
		callCmd,
		selectorCmd,
		rpcCmd,
		configCmd,
	)
}
