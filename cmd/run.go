package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/spf13/cobra"
)

var (
	runIsolate bool
	runOutput  string
)

var runCmd = &cobra.Command{
	Use:   "run [action...]",
	Short: "Run the suite, or only the named actions",
	Long: `Run every action in declared order, or only the ones named.

The report goes to stdout (table, json or yaml); logs go to stderr.
Exit status is non-zero when any action fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		actions, err := selectActions(args)
		if err != nil {
			return err
		}
		switch runOutput {
		case suite.FormatTable, suite.FormatJSON, suite.FormatYAML:
		default:
			return fmt.Errorf("unknown output format %q (use table, json or yaml)", runOutput)
		}
		if runIsolate {
			cfg.Isolate = true
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		env, err := bootstrap(ctx, runOutput != suite.FormatTable)
		if err != nil {
			return err
		}
		defer env.Close()

		rep := env.Runner(suite.WithRunID(runID)).RunAll(ctx, actions)

		out := cmd.OutOrStdout()
		if runOutput == suite.FormatTable {
			fmt.Fprint(out, ui.ReportTable(rep))
		} else if err := rep.Encode(out, runOutput); err != nil {
			return err
		}
		if !rep.OK() {
			return fmt.Errorf("%w: %d of %d action(s) failed", errSuiteFailed, rep.Failed, len(rep.Results))
		}
		return nil
	},
}

// selectActions maps names to actions, keeping declared order when none
// are given.
func selectActions(names []string) ([]suite.Action, error) {
	if len(names) == 0 {
		return suite.Actions(), nil
	}
	out := make([]suite.Action, 0, len(names))
	for _, n := range names {
		a, ok := suite.Find(n)
		if !ok {
			return nil, fmt.Errorf("unknown action %q (available: %s)", n, strings.Join(actionNames(), ", "))
		}
		out = append(out, a)
	}
	return out, nil
}

func actionNames() []string {
	all := suite.Actions()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name
	}
	return names
}

func init() {
	runCmd.Flags().BoolVar(&runIsolate, "isolate", false, "wrap each action in evm_snapshot/evm_revert")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", suite.FormatTable, "report format: table, json or yaml")
}
