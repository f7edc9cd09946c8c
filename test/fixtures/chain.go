package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/Mohsinsiddi/w3probe/internal/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// ChainID is the fake node's chain ID (anvil's default).
const ChainID = 31337

// Chain is an in-process JSON-RPC node hosting one prank-token at
// TokenAddress. It implements the eth_, anvil_ and evm_ methods w3probe uses
// and mines every transaction immediately.
type Chain struct {
	URL string

	mu       sync.Mutex
	abi      abi.ABI
	owner    common.Address
	st       *tokenState
	nonces   map[common.Address]uint64
	receipts map[common.Hash]uint64 // status
	imp      map[common.Address]bool
	snaps    map[string]*tokenState
	block    uint64
	unsigned uint64
	snapSeq  uint64
	calls    map[string]int
}

type tokenState struct {
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	prank      *common.Address
	bracket    bool
}

func (s *tokenState) clone() *tokenState {
	c := &tokenState{
		balances:   make(map[common.Address]*big.Int, len(s.balances)),
		allowances: make(map[[2]common.Address]*big.Int, len(s.allowances)),
		bracket:    s.bracket,
	}
	for k, v := range s.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range s.allowances {
		c.allowances[k] = new(big.Int).Set(v)
	}
	if s.prank != nil {
		p := *s.prank
		c.prank = &p
	}
	return c
}

func (s *tokenState) bal(a common.Address) *big.Int {
	if v, ok := s.balances[a]; ok {
		return v
	}
	return new(big.Int)
}

// NewChain starts the node; it is shut down when the test ends.
func NewChain(t *testing.T) *Chain {
	t.Helper()
	entries, err := contract.Resolve(contract.BuiltinPrankToken)
	require.NoError(t, err)
	parsed, err := contract.ToABI(entries)
	require.NoError(t, err)

	c := &Chain{
		abi:      parsed,
		owner:    Address(OwnerKey),
		st:       &tokenState{balances: map[common.Address]*big.Int{}, allowances: map[[2]common.Address]*big.Int{}},
		nonces:   map[common.Address]uint64{},
		receipts: map[common.Hash]uint64{},
		imp:      map[common.Address]bool{},
		snaps:    map[string]*tokenState{},
		block:    1,
		calls:    map[string]int{},
	}
	srv := httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(srv.Close)
	c.URL = srv.URL
	return c
}

// Balance returns who's token balance.
func (c *Chain) Balance(who common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.st.bal(who))
}

// Pranked reports whether the contract has a prank pending.
func (c *Chain) Pranked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.prank != nil
}

// Impersonating returns the accounts currently impersonated at node level.
func (c *Chain) Impersonating() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []common.Address
	for a := range c.imp {
		out = append(out, a)
	}
	return out
}

// Calls returns how often method was requested.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// --- JSON-RPC plumbing ---

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// revert is an execution failure carrying ABI-encoded revert data.
type revert struct{ data []byte }

func (r *revert) Error() string { return "execution reverted" }

func (c *Chain) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.calls[req.Method]++
	result, err := c.dispatch(req)
	c.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	var rv *revert
	switch {
	case errors.As(err, &rv):
		resp["error"] = rpcError{Code: 3, Message: "execution reverted", Data: hexutil.Encode(rv.data)}
	case err != nil:
		resp["error"] = rpcError{Code: -32000, Message: err.Error()}
	default:
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type callArg struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
	Data  hexutil.Bytes  `json:"data"`
}

func (a callArg) payload() []byte {
	if len(a.Input) > 0 {
		return a.Input
	}
	return a.Data
}

func param(req rpcRequest, i int, v interface{}) error {
	if i >= len(req.Params) {
		return fmt.Errorf("%s: missing param %d", req.Method, i)
	}
	return json.Unmarshal(req.Params[i], v)
}

func (c *Chain) dispatch(req rpcRequest) (interface{}, error) {
	switch req.Method {
	case "eth_chainId":
		return hexutil.Uint64(ChainID), nil
	case "eth_blockNumber":
		return hexutil.Uint64(c.block), nil
	case "eth_getBlockByNumber":
		return map[string]interface{}{
			"number":        hexutil.Uint64(c.block),
			"gasUsed":       hexutil.Uint64(21000),
			"gasLimit":      hexutil.Uint64(30_000_000),
			"baseFeePerGas": (*hexutil.Big)(big.NewInt(1_000_000_000)),
		}, nil
	case "eth_maxPriorityFeePerGas", "eth_gasPrice":
		return (*hexutil.Big)(big.NewInt(1_000_000_000)), nil
	case "eth_getCode":
		var addr common.Address
		if err := param(req, 0, &addr); err != nil {
			return nil, err
		}
		if addr == TokenAddress {
			return hexutil.Bytes{0x60, 0x80, 0x60, 0x40}, nil
		}
		return hexutil.Bytes{}, nil
	case "eth_getTransactionCount":
		var addr common.Address
		if err := param(req, 0, &addr); err != nil {
			return nil, err
		}
		return hexutil.Uint64(c.nonces[addr]), nil

	case "eth_call", "eth_estimateGas":
		var arg callArg
		if err := param(req, 0, &arg); err != nil {
			return nil, err
		}
		out, err := c.exec(c.st.clone(), arg.From, arg.To, arg.payload())
		if err != nil {
			return nil, err
		}
		if req.Method == "eth_estimateGas" {
			return hexutil.Uint64(55_000), nil
		}
		return hexutil.Bytes(out), nil

	case "eth_sendRawTransaction":
		var raw hexutil.Bytes
		if err := param(req, 0, &raw); err != nil {
			return nil, err
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(ChainID)), tx)
		if err != nil {
			return nil, err
		}
		if tx.Nonce() != c.nonces[from] {
			return nil, fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), c.nonces[from])
		}
		c.mine(tx.Hash(), from, *tx.To(), tx.Data())
		return tx.Hash(), nil

	case "eth_sendTransaction":
		var arg callArg
		if err := param(req, 0, &arg); err != nil {
			return nil, err
		}
		if !c.imp[arg.From] {
			return nil, errors.New("No Signer available")
		}
		c.unsigned++
		hash := crypto.Keccak256Hash([]byte("unsigned"), []byte(strconv.FormatUint(c.unsigned, 10)))
		c.mine(hash, arg.From, arg.To, arg.payload())
		return hash, nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := param(req, 0, &hash); err != nil {
			return nil, err
		}
		status, ok := c.receipts[hash]
		if !ok {
			return nil, nil
		}
		return map[string]interface{}{
			"transactionHash": hash,
			"status":          hexutil.Uint64(status),
			"blockNumber":     hexutil.Uint64(c.block),
			"gasUsed":         hexutil.Uint64(50_000),
		}, nil

	case "anvil_impersonateAccount", "anvil_stopImpersonatingAccount":
		var addr common.Address
		if err := param(req, 0, &addr); err != nil {
			return nil, err
		}
		if req.Method == "anvil_impersonateAccount" {
			c.imp[addr] = true
		} else {
			delete(c.imp, addr)
		}
		return nil, nil

	case "evm_snapshot":
		c.snapSeq++
		id := hexutil.EncodeUint64(c.snapSeq)
		c.snaps[id] = c.st.clone()
		return id, nil
	case "evm_revert":
		var id string
		if err := param(req, 0, &id); err != nil {
			return nil, err
		}
		snap, ok := c.snaps[id]
		if !ok {
			return false, nil
		}
		c.st = snap
		delete(c.snaps, id)
		return true, nil
	}
	return nil, fmt.Errorf("the method %s does not exist/is not available", req.Method)
}

func (c *Chain) mine(hash common.Hash, from, to common.Address, data []byte) {
	c.nonces[from]++
	c.block++
	next := c.st.clone()
	if _, err := c.exec(next, from, to, data); err != nil {
		c.receipts[hash] = 0
		return
	}
	c.st = next
	c.receipts[hash] = 1
}

// --- token logic ---

func (c *Chain) exec(st *tokenState, from, to common.Address, data []byte) ([]byte, error) {
	if to != TokenAddress || len(data) < 4 {
		return nil, nil
	}
	m, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, &revert{}
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, &revert{}
	}

	sender := from
	if st.prank != nil {
		sender = *st.prank
	}
	consume := func() {
		if !st.bracket {
			st.prank = nil
		}
	}

	switch m.Name {
	case "balanceOf":
		return m.Outputs.Pack(st.bal(args[0].(common.Address)))
	case "allowance":
		v := st.allowances[[2]common.Address{args[0].(common.Address), args[1].(common.Address)}]
		if v == nil {
			v = new(big.Int)
		}
		return m.Outputs.Pack(v)
	case "decimals":
		return m.Outputs.Pack(uint8(18))
	case "symbol":
		return m.Outputs.Pack("PRANK")
	case "owner":
		return m.Outputs.Pack(c.owner)

	case "mint":
		if sender != c.owner {
			return nil, c.reason("caller is not the owner")
		}
		to, v := args[0].(common.Address), args[1].(*big.Int)
		st.balances[to] = new(big.Int).Add(st.bal(to), v)
		consume()
		return nil, nil
	case "transfer":
		to, v := args[0].(common.Address), args[1].(*big.Int)
		if err := c.move(st, sender, to, v); err != nil {
			return nil, err
		}
		consume()
		return m.Outputs.Pack(true)
	case "approve":
		spender, v := args[0].(common.Address), args[1].(*big.Int)
		st.allowances[[2]common.Address{sender, spender}] = new(big.Int).Set(v)
		consume()
		return m.Outputs.Pack(true)
	case "transferFrom":
		owner, to, v := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		key := [2]common.Address{owner, sender}
		allowed := st.allowances[key]
		if allowed == nil {
			allowed = new(big.Int)
		}
		if allowed.Cmp(v) < 0 {
			return nil, c.custom("ERC20InsufficientAllowance", sender, allowed, v)
		}
		if err := c.move(st, owner, to, v); err != nil {
			return nil, err
		}
		st.allowances[key] = new(big.Int).Sub(allowed, v)
		consume()
		return m.Outputs.Pack(true)

	case "prank", "startPrank":
		if st.prank != nil {
			return nil, c.reason("prank already active")
		}
		who := args[0].(common.Address)
		st.prank, st.bracket = &who, m.Name == "startPrank"
		return nil, nil
	case "stopPrank":
		st.prank, st.bracket = nil, false
		return nil, nil
	}
	return nil, &revert{}
}

func (c *Chain) move(st *tokenState, from, to common.Address, v *big.Int) error {
	bal := st.bal(from)
	if bal.Cmp(v) < 0 {
		return c.custom("ERC20InsufficientBalance", from, bal, v)
	}
	st.balances[from] = new(big.Int).Sub(bal, v)
	st.balances[to] = new(big.Int).Add(st.bal(to), v)
	return nil
}

func (c *Chain) custom(name string, args ...interface{}) error {
	e := c.abi.Errors[name]
	enc, err := e.Inputs.Pack(args...)
	if err != nil {
		panic(err)
	}
	return &revert{data: append(append([]byte{}, e.ID[:4]...), enc...)}
}

var errorStringID = crypto.Keccak256([]byte("Error(string)"))[:4]

func (c *Chain) reason(msg string) error {
	t, _ := abi.NewType("string", "", nil)
	enc, err := abi.Arguments{{Type: t}}.Pack(msg)
	if err != nil {
		panic(err)
	}
	return &revert{data: append(append([]byte{}, errorStringID...), enc...)}
}
