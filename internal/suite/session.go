package suite

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Mohsinsiddi/w3probe/internal/amount"
	"github.com/Mohsinsiddi/w3probe/internal/prank"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Token is the contract surface the actions use. Writes take the address
// they are sent from.
type Token interface {
	BalanceOf(ctx context.Context, who common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Mint(ctx context.Context, from, to common.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, from, spender common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, from, owner, to common.Address, amount *big.Int) error
}

// Accounts are the four role addresses.
type Accounts struct {
	Operator common.Address
	Owner    common.Address
	Alice    common.Address
	Bob      common.Address
}

// Amounts are the suite's quantities in base units.
type Amounts struct {
	InitialMint  *big.Int
	Transfer     *big.Int
	Approve      *big.Int
	TransferFrom *big.Int
}

// Session is everything an action can touch. There is no package state.
type Session struct {
	Token    Token
	Prank    *prank.Interpreter
	Accounts Accounts
	Amounts  Amounts
	Decimals uint8
	Log      *zap.Logger
}

// Balance reads who's balance. Reads never consume a prank.
func (s *Session) Balance(ctx context.Context, who common.Address) (*big.Int, error) {
	return s.Token.BalanceOf(ctx, who)
}

// Allowance reads owner→spender allowance.
func (s *Session) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return s.Token.Allowance(ctx, owner, spender)
}

// Mint mints to `to` as the current sender.
func (s *Session) Mint(ctx context.Context, to common.Address, v *big.Int) error {
	return s.settle(ctx, s.Token.Mint(ctx, s.Prank.Sender(), to, v))
}

// Transfer transfers to `to` as the current sender.
func (s *Session) Transfer(ctx context.Context, to common.Address, v *big.Int) error {
	return s.settle(ctx, s.Token.Transfer(ctx, s.Prank.Sender(), to, v))
}

// Approve approves spender as the current sender.
func (s *Session) Approve(ctx context.Context, spender common.Address, v *big.Int) error {
	return s.settle(ctx, s.Token.Approve(ctx, s.Prank.Sender(), spender, v))
}

// TransferFrom moves owner's tokens to `to` as the current sender.
func (s *Session) TransferFrom(ctx context.Context, owner, to common.Address, v *big.Int) error {
	return s.settle(ctx, s.Token.TransferFrom(ctx, s.Prank.Sender(), owner, to, v))
}

func (s *Session) settle(ctx context.Context, callErr error) error {
	return s.Prank.AfterCall(ctx, callErr)
}

// Fund mints the initial amount to alice as the token owner.
func (s *Session) Fund(ctx context.Context) error {
	if err := s.Prank.Prank(ctx, s.Accounts.Owner); err != nil {
		return err
	}
	if err := s.Mint(ctx, s.Accounts.Alice, s.Amounts.InitialMint); err != nil {
		return fmt.Errorf("minting initial balance: %w", err)
	}
	s.Log.Info("funded alice",
		zap.String("alice", s.Accounts.Alice.Hex()),
		zap.String("amount", amount.Format(s.Amounts.InitialMint, s.Decimals)))
	return nil
}

// ensureBalance tops who up to at least min by minting as the owner, so
// actions keep passing when run again on the same chain.
func (s *Session) ensureBalance(ctx context.Context, who common.Address, min *big.Int) error {
	bal, err := s.Balance(ctx, who)
	if err != nil {
		return err
	}
	if bal.Cmp(min) >= 0 {
		return nil
	}
	short := amount.Sub(min, bal)
	if err := s.Prank.Prank(ctx, s.Accounts.Owner); err != nil {
		return err
	}
	if err := s.Mint(ctx, who, short); err != nil {
		return fmt.Errorf("topping up %s: %w", who.Hex(), err)
	}
	s.Log.Debug("topped up", zap.String("who", who.Hex()), zap.String("minted", short.String()))
	return nil
}
