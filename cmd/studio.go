package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/spf13/cobra"
)

var studioIsolate bool

var studioCmd = &cobra.Command{
	Use:   "studio",
	Short: "Interactive shell: pick actions and run them",
	Long: `Open a full-screen shell listing every action.

  ↑↓ / jk   select
  Enter     run the selected action
  a         run all actions in order
  q         quit

Logs are written to studio.log in the config directory while the shell
owns the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Logging.OutputPath == "stderr" || cfg.Logging.OutputPath == "stdout" {
			cfg.Logging.OutputPath = filepath.Join(cfg.Dir(), "studio.log")
			if err := initLogger(); err != nil {
				return err
			}
		}
		if studioIsolate {
			cfg.Isolate = true
		}

		env, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.Close()

		title := fmt.Sprintf("%s  ·  chain %s  ·  %s", ui.TruncateAddr(env.Token.Address().Hex()), env.ChainID, cfg.Impersonation)
		m := ui.NewRunnerModel(cmd.Context(), title, suite.Actions(), env.Runner(suite.WithRunID(runID)))
		final, err := ui.RunShell(m)
		if err != nil {
			return err
		}

		passed, failed := 0, 0
		for _, r := range final.Results() {
			if r.Passed {
				passed++
			} else {
				failed++
			}
		}
		if passed+failed > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Meta(fmt.Sprintf("%d passed, %d failed (last result per action)", passed, failed)))
		}
		return nil
	},
}

func init() {
	studioCmd.Flags().BoolVar(&studioIsolate, "isolate", false, "wrap each action in evm_snapshot/evm_revert")
}
