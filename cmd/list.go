package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the suite's actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := ui.NewTable([]ui.Column{
			{Title: "Action", Width: 38},
			{Title: "Expects", Width: 8},
			{Title: "Description", Width: 60},
		})
		for _, a := range suite.Actions() {
			expect := "success"
			if a.ExpectRevert {
				expect = "revert"
			}
			t.AddRow(ui.Row{a.Name, expect, a.Description})
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		fmt.Fprintln(cmd.OutOrStdout(), ui.Hint("Run one with: w3probe run <action>"))
		return nil
	},
}
