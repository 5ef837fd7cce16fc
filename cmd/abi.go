package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
	abisync "github.com/Mohsinsiddi/w3scan/internal/sync"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
)

var (
	abiFile    string
	abiBuiltin string
	abiName    string
	abiYes     bool
	abiNetwork string
)

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "Manage the contract ABIs used to decode calls and events",
}

// ── abi add ──────────────────────────────────────────────────────────────────

var abiAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Store an ABI for a contract address",
	Long: `Store an ABI for a contract. Transactions to the contract and logs it emits
are decoded with it, ahead of the built-in tables. Adding an ABI for an
address that already has one replaces it.

ABI source (pick one):
  --file <path>      Raw ABI JSON array or Hardhat/Foundry artifact
  --builtin <id>     A bundled ABI (see: w3scan abi builtins)

Examples:
  w3scan abi add 0x5FbDB2315678afecb367f032d93F642f64180aa3 --file ./out/Greeter.sol/Greeter.json --name Greeter
  w3scan abi add 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --builtin erc20 --name USDC`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]

		var data []byte
		switch {
		case abiFile != "" && abiBuiltin != "":
			return fmt.Errorf("--file and --builtin are mutually exclusive")
		case abiFile != "":
			raw, err := contract.LoadABIFile(abiFile)
			if err != nil {
				return err
			}
			data = raw
		case abiBuiltin != "":
			b, ok := contract.GetBuiltin(abiBuiltin)
			if !ok {
				return fmt.Errorf("unknown built-in %q (available: %s)", abiBuiltin, builtinIDs())
			}
			data = []byte(b.ABI)
		default:
			return fmt.Errorf("an ABI source is required: --file <path> or --builtin <id>")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		_, existed := storedLabel(store, address)
		e, err := store.Add(address, abiName, data)
		if err != nil {
			return err
		}
		if err := store.Save(); err != nil {
			return fmt.Errorf("saving ABI store: %w", err)
		}

		out := cmd.OutOrStdout()
		verb := "Stored"
		if existed {
			verb = "Replaced"
		}
		fns, evs := countEntries(e)
		fmt.Fprintln(out, ui.Success(fmt.Sprintf("%s ABI for %s (%d functions, %d events)", verb, ui.Addr(e.Address), fns, evs)))
		return nil
	},
}

// ── abi list ─────────────────────────────────────────────────────────────────

var abiListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored ABIs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		entries := store.All()
		if len(entries) == 0 {
			fmt.Fprintln(out, ui.Info("No ABIs stored."))
			fmt.Fprintln(out, ui.Hint("Add one with: w3scan abi add <address> --file <abi.json>"))
			return nil
		}

		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render("Stored ABIs"))
		t := ui.NewTable([]ui.Column{
			{Title: "Address", Width: 42},
			{Title: "Name", Width: 20},
			{Title: "Functions", Width: 9},
			{Title: "Events", Width: 6},
			{Title: "Added", Width: 10},
		})
		for _, e := range entries {
			fns, evs := countEntries(e)
			t.AddRow(ui.Row{
				ui.Addr(e.Address),
				ui.Val(e.Name),
				fmt.Sprintf("%d", fns),
				fmt.Sprintf("%d", evs),
				ui.Meta(e.AddedAt.Format("2006-01-02")),
			})
		}
		fmt.Fprint(out, t.Render())
		return nil
	},
}

// ── abi show ─────────────────────────────────────────────────────────────────

var abiShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show the functions and events of a stored ABI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		e, err := store.Get(args[0])
		if err != nil {
			return err
		}
		parsed, err := e.Parsed()
		if err != nil {
			return err
		}

		title := e.Address
		if e.Name != "" {
			title = e.Name + "  ·  " + e.Address
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render(title))

		var fns, evs []string
		for _, m := range parsed.Methods {
			fns = append(fns, fmt.Sprintf("%s  %s  %s", ui.Meta(contract.Selector(m.Sig)), ui.Method(m.Sig), ui.Meta(m.StateMutability)))
		}
		for _, ev := range parsed.Events {
			evs = append(evs, fmt.Sprintf("%s  %s", ui.Meta(ev.ID.Hex()[:10]+"…"), ui.Method(ev.Sig)))
		}
		sort.Strings(fns)
		sort.Strings(evs)

		fmt.Fprintln(out, ui.StyleHeader.Render(fmt.Sprintf("Functions (%d)", len(fns))))
		for _, f := range fns {
			fmt.Fprintln(out, "  "+f)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.StyleHeader.Render(fmt.Sprintf("Events (%d)", len(evs))))
		for _, ev := range evs {
			fmt.Fprintln(out, "  "+ev)
		}
		return nil
	},
}

// ── abi remove ───────────────────────────────────────────────────────────────

var abiRemoveCmd = &cobra.Command{
	Use:     "remove <address>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored ABI",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		e, err := store.Get(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !abiYes && !ui.Confirm(cmd.InOrStdin(), out, fmt.Sprintf("Remove the ABI stored for %s?", e.Address)) {
			fmt.Fprintln(out, ui.Meta("Cancelled."))
			return nil
		}
		if err := store.Remove(e.Address); err != nil {
			return err
		}
		if err := store.Save(); err != nil {
			return fmt.Errorf("saving ABI store: %w", err)
		}
		fmt.Fprintln(out, ui.Success("Removed ABI for "+e.Address))
		return nil
	},
}

// ── abi builtins ─────────────────────────────────────────────────────────────

var abiBuiltinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "List the bundled ABIs",
	Long: `List the ABIs bundled into w3scan. They are always used for decoding and can
be pinned to an address with: w3scan abi add <address> --builtin <id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.StyleTitle.Render("Built-in ABIs"))
		t := ui.NewTable([]ui.Column{
			{Title: "ID", Width: 8},
			{Title: "Name", Width: 28},
			{Title: "Description", Width: 54},
		})
		for _, b := range contract.AllBuiltins() {
			t.AddRow(ui.Row{ui.Val(b.ID), b.Name, ui.Meta(b.Description)})
		}
		fmt.Fprint(out, t.Render())
		return nil
	},
}

// ── abi sync ─────────────────────────────────────────────────────────────────

var abiSyncCmd = &cobra.Command{
	Use:   "sync <manifest>",
	Short: "Import ABIs from a deployments manifest",
	Long: `Import every contract listed in a deployments manifest (URL or local file)
into the ABI store. Each entry carries an inline "abi" or an "abi_url".

  {"contracts": {"<name>": {"<network>": {"address": "0x…", "abi_url": "…"}}}}

Entries that fail are reported and skipped; the rest are stored.

Examples:
  w3scan abi sync ./deployments.json
  w3scan abi sync https://example.com/deployments.json --network sepolia`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		spin := newSpinner(cmd, "Syncing ABIs from "+args[0]+"…")
		report, err := abisync.New(store, abisync.WithLogger(log)).Run(ctx, args[0], abiNetwork)
		spin.Stop()
		if report == nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, name := range report.Imported {
			fmt.Fprintln(out, ui.Success("Imported "+name))
		}
		if err != nil {
			fmt.Fprintln(out, ui.Warn(fmt.Sprintf("%d entries skipped", report.Failed)))
			return err
		}
		return nil
	},
}

// countEntries returns how many functions and events e declares.
func countEntries(e *contract.Entry) (functions, events int) {
	parsed, err := e.Parsed()
	if err != nil {
		return 0, 0
	}
	return len(parsed.Methods), len(parsed.Events)
}

func init() {
	abiAddCmd.Flags().StringVar(&abiFile, "file", "", "ABI JSON array or Hardhat/Foundry artifact")
	abiAddCmd.Flags().StringVar(&abiBuiltin, "builtin", "", "bundled ABI id, e.g. erc20")
	abiAddCmd.Flags().StringVar(&abiName, "name", "", "label shown next to the address")
	abiRemoveCmd.Flags().BoolVarP(&abiYes, "yes", "y", false, "do not ask for confirmation")
	abiSyncCmd.Flags().StringVar(&abiNetwork, "network", "", "only import entries for this network key")

	abiCmd.AddCommand(abiAddCmd, abiListCmd, abiShowCmd, abiRemoveCmd, abiBuiltinsCmd, abiSyncCmd)
}

// builtinIDs lists the bundled ABI ids for flag help and errors.
func builtinIDs() string {
	var ids []string
	for _, b := range contract.AllBuiltins() {
		ids = append(ids, b.ID)
	}
	return strings.Join(ids, ", ")
}
