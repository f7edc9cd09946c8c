package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/Mohsinsiddi/w3probe/internal/wallet"
	"github.com/spf13/cobra"
)

var (
	keysKeyFlag string
	keysYes     bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage role keys in the OS keychain",
	Long: `Store, list and remove the four role keys: operator, owner, alice, bob.

Keys in the environment always win over the keychain:
  operator  PRIVATE_KEY
  owner     TOKEN_PRIVATE_KEY
  alice     ALICE_PRIVATE_KEY
  bob       BOB_PRIVATE_KEY`,
}

var keysSetCmd = &cobra.Command{
	Use:   "set <role>",
	Short: "Store a role's private key (from --key or stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := checkRole(args[0])
		if err != nil {
			return err
		}
		hexKey := keysKeyFlag
		if hexKey == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Private key for %s: ", role)
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			hexKey = strings.TrimSpace(line)
		}
		acct, err := wallet.NewAccount(role, hexKey)
		if err != nil {
			return err
		}
		ref, err := openKeystore().Store(role, hexKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Stored %s key as %s", role, ref)))
		fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("Address: ")+ui.Addr(acct.Address.Hex()))
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show where each role's key comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		ks := openKeystore()
		t := ui.NewTable([]ui.Column{
			{Title: "Role", Width: 10},
			{Title: "Source", Width: 10},
			{Title: "Address", Width: 44},
		})
		for _, role := range config.Roles {
			source, key := "missing", cfg.Keys.Get(role)
			if key != "" {
				source = "env"
			} else if v, err := ks.Retrieve(role); err == nil {
				source, key = "keychain", v
			}
			addr := ""
			if key != "" {
				if a, err := wallet.NewAccount(role, key); err == nil {
					addr = a.Address.Hex()
				} else {
					addr = "invalid key"
				}
			}
			t.AddRow(ui.Row{role, source, addr})
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <role>",
	Short: "Delete a role's key from the keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := checkRole(args[0])
		if err != nil {
			return err
		}
		if !keysYes && !ui.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Remove %s key from the keychain?", role)) {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("Cancelled."))
			return nil
		}
		if err := openKeystore().Delete(role); err != nil {
			if errors.Is(err, wallet.ErrKeyNotFound) {
				return fmt.Errorf("no %s key stored", role)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("Removed %s key.", role)))
		return nil
	},
}

func checkRole(role string) (string, error) {
	role = strings.ToLower(role)
	for _, r := range config.Roles {
		if r == role {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q (use %s)", role, strings.Join(config.Roles, ", "))
}

func init() {
	keysSetCmd.Flags().StringVar(&keysKeyFlag, "key", "", "hex private key (read from stdin when omitted)")
	keysRemoveCmd.Flags().BoolVarP(&keysYes, "yes", "y", false, "skip confirmation")
	keysCmd.AddCommand(keysSetCmd, keysListCmd, keysRemoveCmd)
}
