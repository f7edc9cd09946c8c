package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3probe/internal/suite"
	"github.com/Mohsinsiddi/w3probe/internal/ui"
	"github.com/Mohsinsiddi/w3probe/internal/wallet"
)

// openKeystore is swapped out in tests.
var openKeystore = func() wallet.KeystoreBackend { return wallet.DefaultKeystore() }

// resolveKeys fills keys the environment left unset from the keychain. The
// keychain is only opened when something is missing.
func resolveKeys() {
	var ks wallet.KeystoreBackend
	cfg.ResolveKeys(func(role string) (string, error) {
		if ks == nil {
			ks = openKeystore()
		}
		return ks.Retrieve(role)
	})
}

// bootstrap resolves keys and brings up the harness, with a spinner on
// stderr while the node is contacted.
func bootstrap(ctx context.Context, quiet bool) (*suite.Env, error) {
	resolveKeys()

	var sp *ui.Spinner
	if !quiet {
		sp = ui.NewSpinner(os.Stderr, "Connecting to "+cfg.RPCURL+" …")
		sp.Start()
	}
	env, err := suite.Bootstrap(ctx, cfg, logger)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		var se *suite.SetupError
		if errors.As(err, &se) && se.Step == "config" {
			fmt.Fprintln(os.Stderr, ui.Hint("Inspect settings with: w3probe config list"))
		}
		return nil, err
	}
	return env, nil
}
