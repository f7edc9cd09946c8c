package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3probe/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir  string
	cfg     *config.Config
	verbose bool
	logger  = zap.NewNop()
	runID   string
)

// errSuiteFailed makes the process exit non-zero after a report was printed.
var errSuiteFailed = errors.New("suite failed")

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3probe",
	Short: "ERC-20 contract test harness for local chains",
	Long: `w3probe runs a small suite of ERC-20 checks against a token deployed on a
local development node (anvil, hardhat).

Each action impersonates test accounts with prank/startPrank/stopPrank,
performs token calls and records non-halting assertions. Keys come from the
environment (PRIVATE_KEY, TOKEN_PRIVATE_KEY, ALICE_PRIVATE_KEY,
BOB_PRIVATE_KEY) or the OS keychain (w3probe keys set <role>).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		runID = uuid.NewString()
		return initLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func initLogger() error {
	l, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logger = l.With(zap.String("run_id", runID))
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSuiteFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	// W3PROBE_CONFIG_DIR overrides the default; --config overrides both.
	if envDir := os.Getenv(config.EnvConfigDir); envDir != "" {
		cfgDir = envDir
	}

	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", cfgDir, "config directory (default: ~/.w3probe)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		runCmd,
		listCmd,
		studioCmd,
		pingCmd,
		keysCmd,
		configCmd,
		abiCmd,
	)
}
