package config

import "time"

// Impersonation modes.
const (
	ImpersonateContract = "contract" // the token exposes prank/startPrank/stopPrank
	ImpersonateNode     = "node"     // anvil_impersonateAccount + unsigned sends
)

// Config holds all w3probe configuration.
type Config struct {
	RPCURL          string        `json:"rpc_url"          default:"http://127.0.0.1:8545" validate:"required,url"`
	ContractAddress string        `json:"contract_address" validate:"required,eth_addr"`
	ABI             string        `json:"abi"              default:"prank-token" validate:"required"` // built-in ID or ABI file path
	Impersonation   string        `json:"impersonation"    default:"contract" validate:"oneof=contract node"`
	Decimals        uint8         `json:"decimals"         default:"18" validate:"lte=77"`
	Isolate         bool          `json:"isolate"` // wrap each action in evm_snapshot / evm_revert
	Amounts         Amounts       `json:"amounts"`
	Receipt         Receipt       `json:"receipt"`
	Logging         LoggingConfig `json:"logging"`

	// Keys are never persisted; they come from the environment or the keychain.
	Keys Keys `json:"-"`

	// internal: config dir path used for Save()
	configDir string
}

// Amounts are human token quantities scaled by Decimals, or "raw:<n>" base units.
type Amounts struct {
	InitialMint  string `json:"initial_mint"  default:"1000" validate:"required"`
	Transfer     string `json:"transfer"      default:"100"  validate:"required"`
	Approve      string `json:"approve"       default:"100"  validate:"required"`
	TransferFrom string `json:"transfer_from" default:"50"   validate:"required"`
}

// Receipt controls how long WaitForReceipt polls.
type Receipt struct {
	PollIntervalMS int `json:"poll_interval_ms" default:"250" validate:"gt=0"`
	TimeoutSec     int `json:"timeout_sec"      default:"60"  validate:"gt=0"`
}

// PollInterval returns the receipt poll interval.
func (r Receipt) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMS) * time.Millisecond
}

// Timeout returns the receipt wait deadline.
func (r Receipt) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec) * time.Second
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level      string `json:"level"       default:"info"    validate:"oneof=debug info warn error"`
	Format     string `json:"format"      default:"console" validate:"oneof=json console"`
	OutputPath string `json:"output_path" default:"stderr"`
}

// Keys are hex-encoded secp256k1 private keys, one per role.
type Keys struct {
	Operator string `validate:"required,hexkey"` // sends every contract-mode write
	Owner    string `validate:"required,hexkey"` // token owner, allowed to mint
	Alice    string `validate:"required,hexkey"`
	Bob      string `validate:"required,hexkey"`
}

// Get returns the key for role ("operator", "owner", "alice", "bob").
func (k Keys) Get(role string) string {
	switch role {
	case "operator":
		return k.Operator
	case "owner":
		return k.Owner
	case "alice":
		return k.Alice
	case "bob":
		return k.Bob
	}
	return ""
}

func (k *Keys) set(role, v string) {
	switch role {
	case "operator":
		k.Operator = v
	case "owner":
		k.Owner = v
	case "alice":
		k.Alice = v
	case "bob":
		k.Bob = v
	}
}
