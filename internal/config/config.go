package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-playground/validator/v10"
)

const configFile = "config.json"

// LookupFunc resolves an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads config from dir (or creates defaults) and applies environment
// overrides. dir defaults to ~/.w3probe.
func Load(dir string) (*Config, error) {
	return LoadWithEnv(dir, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(dir string, lookup LookupFunc) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3probe")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := &Config{configDir: dir}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv(lookup)
	return cfg, nil
}

func (c *Config) applyEnv(lookup LookupFunc) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvRPCURL); ok && v != "" {
		c.RPCURL = v
	}
	if v, ok := lookup(EnvContractAddress); ok && v != "" {
		c.ContractAddress = v
	}
	if v, ok := lookup(EnvImpersonation); ok && v != "" {
		c.Impersonation = v
	}
	for _, role := range Roles {
		if v, ok := lookup(roleEnv[role]); ok && v != "" {
			c.Keys.set(role, strings.TrimSpace(v))
		}
	}
}

// ResolveKeys fills every key the environment left empty from retrieve,
// typically the OS keychain. A miss is not an error; Validate reports it.
func (c *Config) ResolveKeys(retrieve func(role string) (string, error)) {
	for _, role := range Roles {
		if c.Keys.Get(role) != "" {
			continue
		}
		if v, err := retrieve(role); err == nil && v != "" {
			c.Keys.set(role, strings.TrimSpace(v))
		}
	}
}

// Save writes the config to disk. Keys are never written.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// Validate checks every field, including that all four keys are present.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Set updates one setting by its dotted JSON name, e.g. "amounts.transfer".
func (c *Config) Set(key, value string) error {
	v := newValidator()
	check := func(tag string) error {
		if err := v.Var(value, tag); err != nil {
			return fmt.Errorf("%s: %q is not a valid value", key, value)
		}
		return nil
	}
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%s: %q is not a positive integer", key, value)
		}
		return n, nil
	}

	switch key {
	case "rpc_url":
		if err := check("required,url"); err != nil {
			return err
		}
		c.RPCURL = value
	case "contract_address":
		if err := check("required,eth_addr"); err != nil {
			return err
		}
		c.ContractAddress = value
	case "abi":
		if err := check("required"); err != nil {
			return err
		}
		c.ABI = value
	case "impersonation":
		if err := check("oneof=contract node"); err != nil {
			return err
		}
		c.Impersonation = value
	case "decimals":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil || n > 77 {
			return fmt.Errorf("%s: %q must be 0..77", key, value)
		}
		c.Decimals = uint8(n)
	case "isolate":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", key, value)
		}
		c.Isolate = b
	case "amounts.initial_mint":
		c.Amounts.InitialMint = value
	case "amounts.transfer":
		c.Amounts.Transfer = value
	case "amounts.approve":
		c.Amounts.Approve = value
	case "amounts.transfer_from":
		c.Amounts.TransferFrom = value
	case "receipt.poll_interval_ms":
		n, err := atoi()
		if err != nil {
			return err
		}
		c.Receipt.PollIntervalMS = n
	case "receipt.timeout_sec":
		n, err := atoi()
		if err != nil {
			return err
		}
		c.Receipt.TimeoutSec = n
	case "logging.level":
		if err := check("oneof=debug info warn error"); err != nil {
			return err
		}
		c.Logging.Level = value
	case "logging.format":
		if err := check("oneof=json console"); err != nil {
			return err
		}
		c.Logging.Format = value
	case "logging.output_path":
		c.Logging.OutputPath = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Entry is one displayable setting.
type Entry struct {
	Key   string
	Value string
}

// Entries lists every persisted setting in display order. Keys are shown as
// set/missing only.
func (c *Config) Entries() []Entry {
	out := []Entry{
		{"rpc_url", c.RPCURL},
		{"contract_address", c.ContractAddress},
		{"abi", c.ABI},
		{"impersonation", c.Impersonation},
		{"decimals", strconv.Itoa(int(c.Decimals))},
		{"isolate", strconv.FormatBool(c.Isolate)},
		{"amounts.initial_mint", c.Amounts.InitialMint},
		{"amounts.transfer", c.Amounts.Transfer},
		{"amounts.approve", c.Amounts.Approve},
		{"amounts.transfer_from", c.Amounts.TransferFrom},
		{"receipt.poll_interval_ms", strconv.Itoa(c.Receipt.PollIntervalMS)},
		{"receipt.timeout_sec", strconv.Itoa(c.Receipt.TimeoutSec)},
		{"logging.level", c.Logging.Level},
		{"logging.format", c.Logging.Format},
		{"logging.output_path", c.Logging.OutputPath},
	}
	for _, role := range Roles {
		state := "missing"
		if c.Keys.Get(role) != "" {
			state = "set"
		}
		out = append(out, Entry{"key." + role, state})
	}
	return out
}

// --- helpers ---

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hexkey", func(fl validator.FieldLevel) bool {
		_, err := crypto.HexToECDSA(strings.TrimPrefix(fl.Field().String(), "0x"))
		return err == nil
	})
	return v
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if strings.HasPrefix(field, "Keys.") {
		role := strings.ToLower(strings.TrimPrefix(field, "Keys."))
		if fe.Tag() == "required" {
			return fmt.Sprintf("%s key missing (set %s or run `w3probe keys set %s`)", role, roleEnv[role], role)
		}
		return fmt.Sprintf("%s key is not a valid secp256k1 private key", role)
	}
	if fe.Tag() == "required" {
		return field + " is required"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s must satisfy %s (got %v)", field, fe.Tag(), fe.Value())
}
