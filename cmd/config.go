package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the effective configuration",
	Long:  `Show settings after environment overrides. Keys are shown as set or missing only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolveKeys()
		var pairs [][2]string
		for _, e := range cfg.Entries() {
			pairs = append(pairs, [2]string{e.Key, e.Value})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Configuration", pairs))
		fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("Config directory: "+cfg.Dir()))
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Warn(err.Error()))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist one setting, e.g. amounts.transfer 250",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Reload without the environment so overrides are not persisted.
		stored, err := config.LoadWithEnv(cfg.Dir(), nil)
		if err != nil {
			return err
		}
		if err := stored.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := stored.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("%s set to %q", args[0], args[1])))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd, configSetCmd)
}
