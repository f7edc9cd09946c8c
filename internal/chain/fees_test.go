package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestFeesLondon(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_maxPriorityFeePerGas": "0x3b9aca00", // 1 gwei
		"eth_getBlockByNumber": map[string]interface{}{
			"number":        "0x10",
			"gasUsed":       "0x0",
			"gasLimit":      "0x1c9c380",
			"baseFeePerGas": "0x77359400", // 2 gwei
		},
	})
	defer srv.Close()

	q, err := dialMock(t, srv.URL).SuggestFees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), q.GasTipCap)
	assert.Equal(t, big.NewInt(2_000_000_000), q.BaseFee)
	assert.Equal(t, big.NewInt(5_000_000_000), q.GasFeeCap)
}

func TestSuggestFeesLegacyFallback(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_maxPriorityFeePerGas": "0x1",
		"eth_getBlockByNumber":     map[string]interface{}{"number": "0x1", "gasUsed": "0x0", "gasLimit": "0x1"},
		"eth_gasPrice":             "0x64",
	})
	defer srv.Close()

	q, err := dialMock(t, srv.URL).SuggestFees(context.Background())
	require.NoError(t, err)
	assert.Nil(t, q.BaseFee)
	assert.Equal(t, big.NewInt(200), q.GasFeeCap)
}

func TestLatestBlock(t *testing.T) {
	srv := rpcMock(t, map[string]interface{}{
		"eth_getBlockByNumber": map[string]interface{}{"number": "0x2a", "gasUsed": "0x32", "gasLimit": "0x64"},
	})
	defer srv.Close()

	b, err := dialMock(t, srv.URL).LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), b.Number)
	assert.Equal(t, "50.0%", b.GasUsedPct())
	assert.Nil(t, b.BaseFee)
}

func TestWeiToGwei(t *testing.T) {
	assert.Equal(t, "1.500", WeiToGwei(big.NewInt(1_500_000_000)))
	assert.Equal(t, "-", WeiToGwei(nil))
}
