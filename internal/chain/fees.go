package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FeeQuote holds the EIP-1559 fee caps to use for the next transaction.
type FeeQuote struct {
	BaseFee   *big.Int // nil on pre-London nodes
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// BlockInfo holds summary data for a block header.
type BlockInfo struct {
	Number   uint64
	GasUsed  uint64
	GasLimit uint64
	BaseFee  *big.Int // nil on pre-EIP-1559 chains
}

// LatestBlock fetches the latest block header (no transaction objects).
func (c *EVMClient) LatestBlock(ctx context.Context) (*BlockInfo, error) {
	var rb *struct {
		Number        hexutil.Uint64 `json:"number"`
		GasUsed       hexutil.Uint64 `json:"gasUsed"`
		GasLimit      hexutil.Uint64 `json:"gasLimit"`
		BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas"`
	}
	if err := c.rpc.CallContext(ctx, &rb, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber: %w", err)
	}
	if rb == nil {
		return nil, fmt.Errorf("block not found")
	}
	info := &BlockInfo{
		Number:   uint64(rb.Number),
		GasUsed:  uint64(rb.GasUsed),
		GasLimit: uint64(rb.GasLimit),
	}
	if rb.BaseFeePerGas != nil {
		info.BaseFee = rb.BaseFeePerGas.ToInt()
	}
	return info, nil
}

// GasUsedPct returns gas utilisation as a percentage string.
func (b *BlockInfo) GasUsedPct() string {
	if b.GasLimit == 0 {
		return "—"
	}
	return fmt.Sprintf("%.1f%%", float64(b.GasUsed)/float64(b.GasLimit)*100)
}

// SuggestFees returns tip and fee caps. The fee cap is 2×base fee + tip, or
// 2×gas price when the node reports no base fee.
func (c *EVMClient) SuggestFees(ctx context.Context) (*FeeQuote, error) {
	tip, err := c.GasTipCap(ctx)
	if err != nil {
		return nil, err
	}

	q := &FeeQuote{GasTipCap: tip}
	if block, err := c.LatestBlock(ctx); err == nil && block.BaseFee != nil {
		q.BaseFee = block.BaseFee
		q.GasFeeCap = new(big.Int).Add(new(big.Int).Mul(block.BaseFee, big.NewInt(2)), tip)
		return q, nil
	}

	gp, err := c.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	q.GasFeeCap = new(big.Int).Mul(gp, big.NewInt(2))
	if q.GasFeeCap.Cmp(tip) < 0 {
		q.GasFeeCap = new(big.Int).Set(tip)
	}
	return q, nil
}

// WeiToGwei converts a Wei value to a Gwei display string.
func WeiToGwei(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9))
	return f.Text('f', 3)
}
