package contract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3probe/internal/chain"
	"github.com/Mohsinsiddi/w3probe/internal/config"
	"github.com/Mohsinsiddi/w3probe/internal/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

var (
	// ErrReturnedFalse is returned when a write simulates without reverting
	// but the function's bool result is false.
	ErrReturnedFalse = errors.New("call returned false")
	// ErrNoMethod is returned when the bound ABI lacks a function.
	ErrNoMethod = errors.New("function not in ABI")
)

// Backend is everything a Token needs from the node.
type Backend interface {
	chain.Reader
	chain.Writer
}

// Options configures NewToken.
type Options struct {
	ChainID        *big.Int
	Signers        []*wallet.Signer // writes from these addresses are signed locally
	ReceiptTimeout time.Duration
	Logger         *zap.Logger
}

// Token is a handle on a deployed ERC-20 contract.
type Token struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	signers map[common.Address]*wallet.Signer
	chainID *big.Int
	timeout time.Duration
	log     *zap.Logger
}

var requiredMethods = []string{"balanceOf", "allowance", "transfer", "approve", "transferFrom"}

// NewToken binds address to entries over backend.
func NewToken(address common.Address, entries []ABIEntry, backend Backend, opts Options) (*Token, error) {
	parsed, err := ToABI(entries)
	if err != nil {
		return nil, err
	}
	for _, name := range requiredMethods {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("%w: %s is required for an ERC-20 token", ErrNoMethod, name)
		}
	}

	t := &Token{
		address: address,
		abi:     parsed,
		backend: backend,
		signers: make(map[common.Address]*wallet.Signer, len(opts.Signers)),
		chainID: opts.ChainID,
		timeout: opts.ReceiptTimeout,
		log:     opts.Logger,
	}
	for _, s := range opts.Signers {
		t.signers[s.Address()] = s
	}
	if t.timeout <= 0 {
		t.timeout = config.TxConfirmTimeout
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	return t, nil
}

// Address returns the contract address.
func (t *Token) Address() common.Address { return t.address }

// HasMethod reports whether the bound ABI has a function called name.
func (t *Token) HasMethod(name string) bool {
	_, ok := t.abi.Methods[name]
	return ok
}

// --- reads ---

// BalanceOf returns who's balance in base units.
func (t *Token) BalanceOf(ctx context.Context, who common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", who)
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

// Decimals returns the token's decimals().
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	vals, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected result %T", vals[0])
	}
	return d, nil
}

// Symbol returns the token's symbol().
func (t *Token) Symbol(ctx context.Context) (string, error) {
	vals, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := vals[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol: unexpected result %T", vals[0])
	}
	return s, nil
}

func (t *Token) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	vals, err := t.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result %T", method, vals[0])
	}
	return n, nil
}

func (t *Token) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if !t.HasMethod(method) {
		return nil, fmt.Errorf("%w: %s", ErrNoMethod, method)
	}
	data, err := t.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding call: %w", method, err)
	}
	out, err := t.backend.Call(ctx, common.Address{}, t.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, t.decodeRevert(err))
	}
	vals, err := t.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s: decoding result: %w", method, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return vals, nil
}

// --- writes ---
//
// Every write is sent from `from`. It is simulated first so reverts and
// false returns surface without mining, then sent once and awaited.

// Mint creates amount tokens for to.
func (t *Token) Mint(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return t.transact(ctx, from, "mint", to, amount)
}

// Transfer moves amount from the caller to to.
func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return t.transact(ctx, from, "transfer", to, amount)
}

// Approve sets spender's allowance over the caller's tokens.
func (t *Token) Approve(ctx context.Context, from, spender common.Address, amount *big.Int) error {
	return t.transact(ctx, from, "approve", spender, amount)
}

// TransferFrom moves amount from owner to to using the caller's allowance.
func (t *Token) TransferFrom(ctx context.Context, from, owner, to common.Address, amount *big.Int) error {
	return t.transact(ctx, from, "transferFrom", owner, to, amount)
}

// Prank makes the contract treat the next call as coming from who.
func (t *Token) Prank(ctx context.Context, from, who common.Address) error {
	return t.transact(ctx, from, "prank", who)
}

// StartPrank makes the contract treat calls as coming from who until StopPrank.
func (t *Token) StartPrank(ctx context.Context, from, who common.Address) error {
	return t.transact(ctx, from, "startPrank", who)
}

// StopPrank clears any prank set on the contract.
func (t *Token) StopPrank(ctx context.Context, from common.Address) error {
	return t.transact(ctx, from, "stopPrank")
}

func (t *Token) transact(ctx context.Context, from common.Address, method string, args ...interface{}) error {
	m, ok := t.abi.Methods[method]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMethod, method)
	}
	data, err := t.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("%s: encoding call: %w", method, err)
	}

	out, err := t.backend.Call(ctx, from, t.address, data)
	if err != nil {
		return fmt.Errorf("%s: %w", method, t.decodeRevert(err))
	}
	if returnedFalse(m, out) {
		return fmt.Errorf("%s: %w", method, ErrReturnedFalse)
	}

	gas, err := t.backend.EstimateGas(ctx, from, t.address, data)
	if err != nil {
		if chain.IsRevert(err) {
			return fmt.Errorf("%s: %w", method, t.decodeRevert(err))
		}
		gas = fallbackGas(method)
		t.log.Warn("gas estimate failed, using fallback",
			zap.String("method", method), zap.Uint64("gas", gas), zap.Error(err))
	}

	var hash common.Hash
	if s := t.signers[from]; s != nil {
		hash, err = t.sendSigned(ctx, s, data, gas)
	} else {
		hash, err = t.backend.SendUnsignedTransaction(ctx, from, t.address, data, gas)
	}
	if err != nil {
		return fmt.Errorf("%s: sending: %w", method, t.decodeRevert(err))
	}

	receipt, err := t.backend.WaitForReceipt(ctx, hash, t.timeout)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	t.log.Debug("tx mined",
		zap.String("method", method),
		zap.String("from", from.Hex()),
		zap.String("hash", hash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed))
	return nil
}

func (t *Token) sendSigned(ctx context.Context, s *wallet.Signer, data []byte, gas uint64) (common.Hash, error) {
	if t.chainID == nil {
		return common.Hash{}, fmt.Errorf("chain id not set")
	}
	nonce, err := t.backend.GetNonce(ctx, s.Address())
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting nonce: %w", err)
	}
	fees, err := t.backend.SuggestFees(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting fees: %w", err)
	}

	to := t.address
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.chainID,
		Nonce:     nonce,
		GasTipCap: fees.GasTipCap,
		GasFeeCap: fees.GasFeeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := s.SignTx(tx, t.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	return t.backend.SendRawTransaction(ctx, signed)
}

// decodeRevert fills in the reason of a custom-error revert from the ABI.
func (t *Token) decodeRevert(err error) error {
	re, ok := chain.AsRevert(err)
	if !ok || re.Reason != "" || len(re.Data) < 4 {
		return err
	}
	for _, e := range t.abi.Errors {
		if !bytes.Equal(e.ID[:4], re.Data[:4]) {
			continue
		}
		vals, uerr := e.Inputs.Unpack(re.Data[4:])
		if uerr != nil {
			re.Reason = e.Name
			return err
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%s=%v", e.Inputs[i].Name, v)
		}
		re.Reason = fmt.Sprintf("%s(%s)", e.Name, strings.Join(parts, ", "))
		return err
	}
	return err
}

func returnedFalse(m abi.Method, out []byte) bool {
	if len(m.Outputs) != 1 || m.Outputs[0].Type.T != abi.BoolTy || len(out) == 0 {
		return false
	}
	vals, err := m.Outputs.Unpack(out)
	if err != nil || len(vals) != 1 {
		return false
	}
	b, ok := vals[0].(bool)
	return ok && !b
}

func fallbackGas(method string) uint64 {
	switch method {
	case "mint":
		return config.GasLimitERC20Mint
	case "transfer", "approve", "transferFrom":
		return config.GasLimitERC20Transfer
	}
	return config.GasLimitContractCall
}
