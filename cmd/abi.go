package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3probe/internal/contract"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/spf13/cobra"
)

var abiBuiltins bool

var abiCmd = &cobra.Command{
	Use:   "abi [builtin-or-file]",
	Short: "Show the functions and selectors of an ABI",
	Long: `Show every function of an ABI with its 4-byte selector.
Without an argument the configured ABI is used.

Examples:
  w3probe abi                   # configured ABI
  w3probe abi erc20             # a built-in
  w3probe abi out/Token.json    # a Foundry/Hardhat artifact
  w3probe abi --builtins        # list the built-ins`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if abiBuiltins {
			t := ui.NewTable([]ui.Column{
				{Title: "ID", Width: 14},
				{Title: "Name", Width: 24},
				{Title: "Description", Width: 60},
			})
			for _, b := range contract.AllBuiltins() {
				t.AddRow(ui.Row{b.ID, b.Name, b.Description})
			}
			fmt.Fprintln(out, t.Render())
			return nil
		}

		ref := cfg.ABI
		if len(args) == 1 {
			ref = args[0]
		}
		entries, err := contract.Resolve(ref)
		if err != nil {
			return err
		}

		t := ui.NewTable([]ui.Column{
			{Title: "Selector", Width: 10},
			{Title: "Kind", Width: 5},
			{Title: "Signature", Width: 50},
		})
		n := 0
		for _, e := range entries {
			if e.Type != "function" {
				continue
			}
			kind := "write"
			if e.IsReadFunction() {
				kind = "read"
			}
			t.AddRow(ui.Row{e.Selector(), kind, e.Signature()})
			n++
		}
		if n == 0 {
			fmt.Fprintln(out, ui.Warn(fmt.Sprintf("%s has no functions", ref)))
			return nil
		}
		fmt.Fprintln(out, t.Render())

		for _, m := range []string{"prank", "startPrank", "stopPrank"} {
			if contract.Find(entries, m) == nil {
				fmt.Fprintln(out, ui.Hint("no "+m+"() in this ABI; run with impersonation=node"))
				break
			}
		}
		return nil
	},
}

func init() {
	abiCmd.Flags().BoolVar(&abiBuiltins, "builtins", false, "list the built-in ABIs")
}
