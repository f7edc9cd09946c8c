package config

import "time"

// Gas limits used as EstimateGas fallbacks when the node cannot simulate the tx.
const (
	GasLimitERC20Transfer = uint64(60_000)  // transfer, approve, transferFrom
	GasLimitERC20Mint     = uint64(80_000)  // mint
	GasLimitContractCall  = uint64(200_000) // generic contract state-change call
)

// Timeouts shared by cmd.
const (
	DialTimeout      = 10 * time.Second
	PingTimeout      = 5 * time.Second
	TxConfirmTimeout = 3 * time.Minute // hard upper bound regardless of Receipt.TimeoutSec
)

// Roles, in the order they are listed and resolved.
var Roles = []string{"operator", "owner", "alice", "bob"}

// Environment variables that override config.json.
const (
	EnvConfigDir       = "W3PROBE_CONFIG_DIR"
	EnvRPCURL          = "RPC_URL"
	EnvContractAddress = "CONTRACT_ADDRESS"
	EnvOperatorKey     = "PRIVATE_KEY"
	EnvOwnerKey        = "TOKEN_PRIVATE_KEY"
	EnvAliceKey        = "ALICE_PRIVATE_KEY"
	EnvBobKey          = "BOB_PRIVATE_KEY"
	EnvImpersonation   = "W3PROBE_IMPERSONATION"
)

// roleEnv maps each role to the variable holding its key.
var roleEnv = map[string]string{
	"operator": EnvOperatorKey,
	"owner":    EnvOwnerKey,
	"alice":    EnvAliceKey,
	"bob":      EnvBobKey,
}
