package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAndRevert(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"evm_snapshot": "0x1",
		"evm_revert":   true,
	})
	defer srv.Close()

	c := dialMock(t, srv.URL)
	id, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x1", id)
	assert.NoError(t, c.Revert(context.Background(), id))
}

func TestRevertUnknownSnapshot(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{"evm_revert": false})
	defer srv.Close()

	err := dialMock(t, srv.URL).Revert(context.Background(), "0x9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestImpersonation(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"anvil_impersonateAccount":       nil,
		"anvil_stopImpersonatingAccount": nil,
	})
	defer srv.Close()

	c := dialMock(t, srv.URL)
	require.NoError(t, c.ImpersonateAccount(context.Background(), addrA))
	require.NoError(t, c.StopImpersonatingAccount(context.Background(), addrA))
}

func TestCheatsUnsupportedNode(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{})
	defer srv.Close()

	c := dialMock(t, srv.URL)
	_, err := c.Snapshot(context.Background())
	assert.Error(t, err)
	assert.Error(t, c.ImpersonateAccount(context.Background(), addrA))
}
