package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Development-node cheat RPCs (anvil, hardhat). Plain geth nodes answer
// "method not found".

// Snapshot records the current chain state and returns its id.
func (c *EVMClient) Snapshot(ctx context.Context) (string, error) {
	var id hexutil.Big
	if err := c.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot: %w", err)
	}
	return id.String(), nil
}

// Revert restores the state recorded by Snapshot. Snapshots are single-use.
func (c *EVMClient) Revert(ctx context.Context, id string) error {
	var ok bool
	if err := c.rpc.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return fmt.Errorf("evm_revert: %w", err)
	}
	if !ok {
		return fmt.Errorf("evm_revert: snapshot %s not found", id)
	}
	return nil
}

// ImpersonateAccount lets unsigned transactions be sent from addr.
func (c *EVMClient) ImpersonateAccount(ctx context.Context, addr common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_impersonateAccount", addr); err != nil {
		return fmt.Errorf("anvil_impersonateAccount: %w", err)
	}
	return nil
}

// StopImpersonatingAccount undoes ImpersonateAccount.
func (c *EVMClient) StopImpersonatingAccount(ctx context.Context, addr common.Address) error {
	if err := c.rpc.CallContext(ctx, nil, "anvil_stopImpersonatingAccount", addr); err != nil {
		return fmt.Errorf("anvil_stopImpersonatingAccount: %w", err)
	}
	return nil
}
