package prank

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Backend applies directives to the chain.
type Backend interface {
	Prank(ctx context.Context, who common.Address) error
	StartPrank(ctx context.Context, who common.Address) error
	// StopPrank ends a bracket, or clears a one-shot prank no call consumed.
	StopPrank(ctx context.Context, who common.Address) error
	// Consumed runs after the single write a one-shot prank applied to.
	// callErr is that write's outcome.
	Consumed(ctx context.Context, who common.Address, callErr error) error
	// Sender is the address writes are sent from; who is nil when no
	// impersonation is active.
	Sender(who *common.Address) common.Address
}

// PrankContract is a token exposing prank entry points.
type PrankContract interface {
	Prank(ctx context.Context, from, who common.Address) error
	StartPrank(ctx context.Context, from, who common.Address) error
	StopPrank(ctx context.Context, from common.Address) error
}

// ContractBackend drives the contract's own prank/startPrank/stopPrank. Every
// write is sent by the operator; the contract substitutes msg.sender.
type ContractBackend struct {
	Token    PrankContract
	Operator common.Address
}

func (b *ContractBackend) Prank(ctx context.Context, who common.Address) error {
	return b.Token.Prank(ctx, b.Operator, who)
}

func (b *ContractBackend) StartPrank(ctx context.Context, who common.Address) error {
	return b.Token.StartPrank(ctx, b.Operator, who)
}

func (b *ContractBackend) StopPrank(ctx context.Context, _ common.Address) error {
	return b.Token.StopPrank(ctx, b.Operator)
}

// Consumed clears the on-chain prank when the write never mined successfully,
// since the contract only consumes a prank inside a successful call.
func (b *ContractBackend) Consumed(ctx context.Context, _ common.Address, callErr error) error {
	if callErr == nil {
		return nil
	}
	return b.Token.StopPrank(ctx, b.Operator)
}

func (b *ContractBackend) Sender(*common.Address) common.Address { return b.Operator }

// NodeCheats is the node's account-impersonation RPC surface.
type NodeCheats interface {
	ImpersonateAccount(ctx context.Context, addr common.Address) error
	StopImpersonatingAccount(ctx context.Context, addr common.Address) error
}

// NodeBackend impersonates at the node level; writes are sent unsigned from
// the impersonated address.
type NodeBackend struct {
	Node     NodeCheats
	Operator common.Address
}

func (b *NodeBackend) Prank(ctx context.Context, who common.Address) error {
	return b.Node.ImpersonateAccount(ctx, who)
}

func (b *NodeBackend) StartPrank(ctx context.Context, who common.Address) error {
	return b.Node.ImpersonateAccount(ctx, who)
}

func (b *NodeBackend) StopPrank(ctx context.Context, who common.Address) error {
	return b.Node.StopImpersonatingAccount(ctx, who)
}

func (b *NodeBackend) Consumed(ctx context.Context, who common.Address, _ error) error {
	return b.Node.StopImpersonatingAccount(ctx, who)
}

func (b *NodeBackend) Sender(who *common.Address) common.Address {
	if who != nil {
		return *who
	}
	return b.Operator
}
