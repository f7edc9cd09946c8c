package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultPollInterval is how often WaitForReceipt polls when not configured.
const DefaultPollInterval = 250 * time.Millisecond

// Reader is the read-only view of the node.
type Reader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)
	Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error)
}

// Writer is the state-changing view of the node. Nothing behind it retries a send.
type Writer interface {
	GetNonce(ctx context.Context, addr common.Address) (uint64, error)
	GasTipCap(ctx context.Context) (*big.Int, error)
	SuggestFees(ctx context.Context) (*FeeQuote, error)
	EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error)
	SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	SendUnsignedTransaction(ctx context.Context, from, to common.Address, data []byte, gas uint64) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*TxReceipt, error)
}

// EVMClient is a JSON-RPC client for a local EVM node. Reader and Writer are
// two views over the same connection.
type EVMClient struct {
	url          string
	rpc          *rpc.Client
	eth          *ethclient.Client
	pollInterval time.Duration
}

// Dial connects to url. For HTTP endpoints no request is made until first use.
func Dial(ctx context.Context, url string) (*EVMClient, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewEVMClient(url, rc), nil
}

// NewEVMClient wraps an existing rpc.Client.
func NewEVMClient(url string, rc *rpc.Client) *EVMClient {
	return &EVMClient{
		url:          url,
		rpc:          rc,
		eth:          ethclient.NewClient(rc),
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes the receipt poll interval.
func (c *EVMClient) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// URL returns the endpoint this client was dialled with.
func (c *EVMClient) URL() string { return c.url }

// Close releases the underlying connection.
func (c *EVMClient) Close() { c.rpc.Close() }

// ChainID returns the chain's ID.
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	return id, nil
}

// BlockNumber returns the latest block number.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return n, nil
}

// Ping tests the RPC endpoint and returns latency + block number.
func (c *EVMClient) Ping(ctx context.Context) (latency time.Duration, blockNum uint64, err error) {
	start := time.Now()
	blockNum, err = c.BlockNumber(ctx)
	return time.Since(start), blockNum, err
}

// GetNonce returns the pending transaction count for addr.
func (c *EVMClient) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("eth_getTransactionCount: %w", err)
	}
	return n, nil
}

// GasPrice returns the node's legacy gas price.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	gp, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	return gp, nil
}

// GasTipCap returns the suggested priority fee.
func (c *EVMClient) GasTipCap(ctx context.Context) (*big.Int, error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_maxPriorityFeePerGas: %w", err)
	}
	return tip, nil
}

// EstimateGas estimates gas for a call from→to with data. Reverts come back
// as *RevertError.
func (c *EVMClient) EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, wrapCallError(err)
	}
	return gas, nil
}

// Call executes eth_call against the latest block with an explicit sender.
// Reverts come back as *RevertError.
func (c *EVMClient) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, wrapCallError(err)
	}
	return out, nil
}

// GetCode returns the bytecode at addr. Empty means no contract.
func (c *EVMClient) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getCode: %w", err)
	}
	return code, nil
}

// SendRawTransaction broadcasts a signed transaction.
func (c *EVMClient) SendRawTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, wrapCallError(err)
	}
	return tx.Hash(), nil
}

// SendUnsignedTransaction submits an eth_sendTransaction the node signs
// itself. Only works for unlocked or impersonated senders.
func (c *EVMClient) SendUnsignedTransaction(ctx context.Context, from, to common.Address, data []byte, gas uint64) (common.Hash, error) {
	arg := map[string]interface{}{
		"from":  from,
		"to":    to,
		"input": hexutil.Bytes(data),
	}
	if gas > 0 {
		arg["gas"] = hexutil.Uint64(gas)
	}
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", arg); err != nil {
		return common.Hash{}, wrapCallError(err)
	}
	return hash, nil
}

// TxReceipt holds the on-chain receipt of a mined transaction.
type TxReceipt struct {
	Hash        common.Hash
	Status      uint64 // 1 = success, 0 = reverted
	BlockNumber uint64
	GasUsed     uint64
}

// GetTransactionReceipt fetches the receipt for hash.
// Returns nil, nil if the transaction is still pending.
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*TxReceipt, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil // still pending
	}

	var r struct {
		Status      hexutil.Uint64 `json:"status"`
		BlockNumber hexutil.Uint64 `json:"blockNumber"`
		GasUsed     hexutil.Uint64 `json:"gasUsed"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}
	return &TxReceipt{
		Hash:        hash,
		Status:      uint64(r.Status),
		BlockNumber: uint64(r.BlockNumber),
		GasUsed:     uint64(r.GasUsed),
	}, nil
}

// ErrReceiptTimeout is returned when a transaction is not mined in time.
var ErrReceiptTimeout = errors.New("transaction not mined in time")

// WaitForReceipt polls until the transaction is mined, ctx is done or timeout
// expires. A mined transaction with Status == 0 returns *RevertError.
func (c *EVMClient) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*TxReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.GetTransactionReceipt(ctx, hash)
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if receipt != nil {
			if receipt.Status == 0 {
				return receipt, &RevertError{TxHash: hash}
			}
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash.Hex(), timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
