package suite

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Mohsinsiddi/w3probe/internal/amount"
	"github.com/Mohsinsiddi/w3probe/internal/chain"
	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/Mohsinsiddi/w3probe/internal/contract"
	"github.com/Mohsinsiddi/w3probe/internal/prank"
	"github.com/Mohsinsiddi/w3probe/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// SetupError reports which bootstrap step failed.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string { return fmt.Sprintf("setup failed at %s: %v", e.Step, e.Err) }
func (e *SetupError) Unwrap() error { return e.Err }

func setupErr(step string, err error) error { return &SetupError{Step: step, Err: err} }

// Node is the chain connection the harness drives.
type Node interface {
	contract.Backend
	prank.NodeCheats
	Snapshotter
	SetPollInterval(d time.Duration)
	Close()
}

// DialFunc opens a Node.
type DialFunc func(ctx context.Context, url string) (Node, error)

// DialEVM dials a JSON-RPC node.
func DialEVM(ctx context.Context, url string) (Node, error) {
	c, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Env is a bootstrapped harness.
type Env struct {
	Session *Session
	Node    Node
	Token   *contract.Token
	ChainID *big.Int
	cfg     *config.Config
}

// Runner returns a runner over the session, isolated when the config asks.
func (e *Env) Runner(opts ...RunnerOption) *Runner {
	if e.cfg.Isolate {
		opts = append([]RunnerOption{WithIsolation(e.Node)}, opts...)
	}
	return NewRunner(e.Session, opts...)
}

// Close releases the node connection.
func (e *Env) Close() {
	if e.Node != nil {
		e.Node.Close()
	}
}

// Bootstrap validates cfg, connects, binds the token and funds alice.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Env, error) {
	return BootstrapWith(ctx, cfg, log, DialEVM)
}

// BootstrapWith is Bootstrap with an explicit dialer.
func BootstrapWith(ctx context.Context, cfg *config.Config, log *zap.Logger, dial DialFunc) (*Env, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, setupErr("config", err)
	}

	accounts, operator, err := loadAccounts(cfg.Keys)
	if err != nil {
		return nil, setupErr("accounts", err)
	}
	amounts, err := parseAmounts(cfg.Amounts, cfg.Decimals)
	if err != nil {
		return nil, setupErr("amounts", err)
	}
	entries, err := contract.Resolve(cfg.ABI)
	if err != nil {
		return nil, setupErr("abi", err)
	}

	node, err := dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, setupErr("dial", err)
	}
	node.SetPollInterval(cfg.Receipt.PollInterval())
	env := &Env{Node: node, cfg: cfg}
	fail := func(step string, err error) (*Env, error) {
		env.Close()
		return nil, setupErr(step, err)
	}

	env.ChainID, err = node.ChainID(ctx)
	if err != nil {
		return fail("chain id", err)
	}
	addr := common.HexToAddress(cfg.ContractAddress)
	code, err := node.GetCode(ctx, addr)
	if err != nil {
		return fail("contract code", err)
	}
	if len(code) == 0 {
		return fail("contract code", fmt.Errorf("no contract deployed at %s", addr.Hex()))
	}

	env.Token, err = contract.NewToken(addr, entries, node, contract.Options{
		ChainID:        env.ChainID,
		Signers:        []*wallet.Signer{operator.Signer()},
		ReceiptTimeout: cfg.Receipt.Timeout(),
		Logger:         log,
	})
	if err != nil {
		return fail("token", err)
	}
	checkDecimals(ctx, env.Token, cfg.Decimals, log)

	backend, err := newPrankBackend(cfg.Impersonation, env.Token, node, accounts.Operator)
	if err != nil {
		return fail("impersonation", err)
	}

	env.Session = &Session{
		Token:    env.Token,
		Prank:    prank.New(backend, log),
		Accounts: accounts,
		Amounts:  amounts,
		Decimals: cfg.Decimals,
		Log:      log,
	}
	log.Info("connected",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", env.ChainID.String()),
		zap.String("token", addr.Hex()),
		zap.String("impersonation", cfg.Impersonation))

	fundErr := env.Session.Fund(ctx)
	if _, err := env.Session.Prank.Close(ctx); fundErr == nil {
		fundErr = err
	}
	if fundErr != nil {
		return fail("fund", fundErr)
	}
	return env, nil
}

func loadAccounts(keys config.Keys) (Accounts, wallet.Account, error) {
	var accts [4]wallet.Account
	for i, role := range config.Roles {
		a, err := wallet.NewAccount(role, keys.Get(role))
		if err != nil {
			return Accounts{}, wallet.Account{}, err
		}
		accts[i] = a
	}
	return Accounts{
		Operator: accts[0].Address,
		Owner:    accts[1].Address,
		Alice:    accts[2].Address,
		Bob:      accts[3].Address,
	}, accts[0], nil
}

func parseAmounts(a config.Amounts, decimals uint8) (Amounts, error) {
	var out Amounts
	fields := []struct {
		name string
		in   string
		dst  **big.Int
	}{
		{"initial_mint", a.InitialMint, &out.InitialMint},
		{"transfer", a.Transfer, &out.Transfer},
		{"approve", a.Approve, &out.Approve},
		{"transfer_from", a.TransferFrom, &out.TransferFrom},
	}
	for _, f := range fields {
		v, err := amount.Parse(f.in, decimals)
		if err != nil {
			return Amounts{}, fmt.Errorf("amounts.%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if out.TransferFrom.Cmp(out.Approve) > 0 {
		return Amounts{}, errors.New("amounts.transfer_from must not exceed amounts.approve")
	}
	return out, nil
}

func newPrankBackend(mode string, token *contract.Token, node prank.NodeCheats, operator common.Address) (prank.Backend, error) {
	switch mode {
	case config.ImpersonateContract:
		for _, m := range []string{"prank", "startPrank", "stopPrank"} {
			if !token.HasMethod(m) {
				return nil, fmt.Errorf("%w: contract impersonation needs %s (use impersonation=node for plain ERC-20 tokens)", contract.ErrNoMethod, m)
			}
		}
		return &prank.ContractBackend{Token: token, Operator: operator}, nil
	case config.ImpersonateNode:
		return &prank.NodeBackend{Node: node, Operator: operator}, nil
	}
	return nil, fmt.Errorf("unknown impersonation mode %q", mode)
}

// A token whose decimals() disagrees with config would scale every amount
// wrong; warn but carry on, since raw: amounts are unaffected.
func checkDecimals(ctx context.Context, token *contract.Token, want uint8, log *zap.Logger) {
	if !token.HasMethod("decimals") {
		return
	}
	got, err := token.Decimals(ctx)
	if err != nil {
		log.Debug("could not read decimals()", zap.Error(err))
		return
	}
	if got != want {
		log.Warn("token decimals differ from config", zap.Uint8("token", got), zap.Uint8("config", want))
	}
}
