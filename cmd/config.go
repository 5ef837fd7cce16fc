package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/config"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change configuration",
	Long: `Settings are read from ~/.w3scan/config.json, then W3SCAN_* environment
variables (W3SCAN_RPC, W3SCAN_FEED_COUNT, …), then command-line flags.`,
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"list"},
	Short:   "Show the effective configuration",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render("Current Configuration"))
		fmt.Fprintln(out, string(data))
		fmt.Fprintln(out, ui.Meta("Config file: "+cfg.Path()))
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(out, ui.Warn(err.Error()))
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Print one setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save it",
	Long: `Change one setting and save it to the config file. The new value is
validated before it is written.

Keys: rpc, fallback_rpcs (comma separated), rpc_algorithm, poll_interval,
feed.count, feed.batch_size, feed.max_lookback, blocks_to_show, log_level,
metrics_addr.

Examples:
  w3scan config set rpc https://eth.llamarpc.com
  w3scan config set feed.batch_size 10
  w3scan config set poll_interval 2s`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s set to %q", key, value)))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every setting with its current value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs := make([][2]string, 0, len(config.Keys()))
		for _, k := range config.Keys() {
			v, err := cfg.Get(k)
			if err != nil {
				return err
			}
			pairs = append(pairs, [2]string{k, v})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Settings", pairs))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configKeysCmd)
}
