package suite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/Mohsinsiddi/w3probe/internal/amount"
	"github.com/Mohsinsiddi/w3probe/internal/chain"
	"github.com/Mohsinsiddi/w3probe/internal/prank"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	operatorAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	ownerAddr    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	aliceAddr    = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	bobAddr      = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

// ledger is an in-memory token that honours the contract's prank semantics:
// a one-shot prank is cleared by the first successful write, and a reverted
// write rolls back, leaving the prank pending.
type ledger struct {
	mu         sync.Mutex
	owner      common.Address
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	pranked    *common.Address
	bracket    bool
	node       *fakeNode // when set, non-operator senders must be impersonated
	writes     int
	approveCap *big.Int // when set, approve stores at most this much
}

func newLedger() *ledger {
	return &ledger{
		owner:      ownerAddr,
		balances:   map[common.Address]*big.Int{},
		allowances: map[[2]common.Address]*big.Int{},
	}
}

func revert(reason string) error { return &chain.RevertError{Reason: reason} }

func (l *ledger) bal(a common.Address) *big.Int {
	if v, ok := l.balances[a]; ok {
		return v
	}
	return new(big.Int)
}

func (l *ledger) sender(from common.Address) (common.Address, error) {
	if l.node != nil && from != operatorAddr && !l.node.active(from) {
		return common.Address{}, errors.New("No Signer available")
	}
	if l.pranked != nil {
		return *l.pranked, nil
	}
	return from, nil
}

func (l *ledger) consumed() {
	if !l.bracket {
		l.pranked = nil
	}
}

func (l *ledger) BalanceOf(_ context.Context, who common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.bal(who)), nil
}

func (l *ledger) Allowance(_ context.Context, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (l *ledger) Mint(_ context.Context, from, to common.Address, v *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.sender(from)
	if err != nil {
		return err
	}
	if s != l.owner {
		return revert("OwnableUnauthorizedAccount")
	}
	l.balances[to] = amount.Add(l.bal(to), v)
	l.writes++
	l.consumed()
	return nil
}

func (l *ledger) Transfer(_ context.Context, from, to common.Address, v *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.sender(from)
	if err != nil {
		return err
	}
	if l.bal(s).Cmp(v) < 0 {
		return revert("ERC20InsufficientBalance")
	}
	l.balances[s] = amount.Sub(l.bal(s), v)
	l.balances[to] = amount.Add(l.bal(to), v)
	l.writes++
	l.consumed()
	return nil
}

func (l *ledger) Approve(_ context.Context, from, spender common.Address, v *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.sender(from)
	if err != nil {
		return err
	}
	if l.approveCap != nil && v.Cmp(l.approveCap) > 0 {
		v = l.approveCap
	}
	l.allowances[[2]common.Address{s, spender}] = new(big.Int).Set(v)
	l.writes++
	l.consumed()
	return nil
}

func (l *ledger) TransferFrom(_ context.Context, from, owner, to common.Address, v *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, err := l.sender(from)
	if err != nil {
		return err
	}
	key := [2]common.Address{owner, s}
	allowed := l.allowances[key]
	if allowed == nil || allowed.Cmp(v) < 0 {
		return revert("ERC20InsufficientAllowance")
	}
	if l.bal(owner).Cmp(v) < 0 {
		return revert("ERC20InsufficientBalance")
	}
	l.allowances[key] = amount.Sub(allowed, v)
	l.balances[owner] = amount.Sub(l.bal(owner), v)
	l.balances[to] = amount.Add(l.bal(to), v)
	l.writes++
	l.consumed()
	return nil
}

func (l *ledger) Prank(_ context.Context, _, who common.Address) error {
	return l.begin(who, false)
}

func (l *ledger) StartPrank(_ context.Context, _, who common.Address) error {
	return l.begin(who, true)
}

func (l *ledger) begin(who common.Address, bracket bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pranked != nil {
		return revert("prank already active")
	}
	l.pranked, l.bracket = &who, bracket
	return nil
}

func (l *ledger) StopPrank(context.Context, common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pranked, l.bracket = nil, false
	return nil
}

type fakeNode struct {
	mu    sync.Mutex
	imp   map[common.Address]bool
	snaps []string
	reset []string
}

func newFakeNode() *fakeNode { return &fakeNode{imp: map[common.Address]bool{}} }

func (n *fakeNode) active(a common.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.imp[a]
}

func (n *fakeNode) ImpersonateAccount(_ context.Context, a common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.imp[a] = true
	return nil
}

func (n *fakeNode) StopImpersonatingAccount(_ context.Context, a common.Address) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.imp, a)
	return nil
}

func (n *fakeNode) Snapshot(context.Context) (string, error) {
	n.snaps = append(n.snaps, "0x1")
	return "0x1", nil
}

func (n *fakeNode) Revert(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.reset = append(n.reset, id)
	return nil
}

func testAmounts() Amounts {
	return Amounts{
		InitialMint:  amount.MustParse("1000", 18),
		Transfer:     amount.MustParse("100", 18),
		Approve:      amount.MustParse("100", 18),
		TransferFrom: amount.MustParse("50", 18),
	}
}

func newSession(t *testing.T, tok *ledger, backend prank.Backend) *Session {
	t.Helper()
	s := &Session{
		Token: tok,
		Prank: prank.New(backend, zap.NewNop()),
		Accounts: Accounts{
			Operator: operatorAddr,
			Owner:    ownerAddr,
			Alice:    aliceAddr,
			Bob:      bobAddr,
		},
		Amounts:  testAmounts(),
		Decimals: 18,
		Log:      zap.NewNop(),
	}
	require.NoError(t, s.Fund(context.Background()))
	_, err := s.Prank.Close(context.Background())
	require.NoError(t, err)
	return s
}

func contractSession(t *testing.T) (*Session, *ledger) {
	tok := newLedger()
	return newSession(t, tok, &prank.ContractBackend{Token: tok, Operator: operatorAddr}), tok
}

func nodeSession(t *testing.T) (*Session, *ledger, *fakeNode) {
	tok, node := newLedger(), newFakeNode()
	tok.node = node
	return newSession(t, tok, &prank.NodeBackend{Node: node, Operator: operatorAddr}), tok, node
}

func TestFundMintsToAliceAsOwner(t *testing.T) {
	s, tok := contractSession(t)
	bal, _ := tok.BalanceOf(context.Background(), aliceAddr)
	assert.Equal(t, 0, bal.Cmp(s.Amounts.InitialMint))
	assert.Nil(t, tok.pranked, "one-shot prank consumed by mint")
}

func TestRunAllPassesInContractMode(t *testing.T) {
	s, tok := contractSession(t)
	rep := NewRunner(s).RunAll(context.Background(), Actions())

	require.Len(t, rep.Results, 3)
	for _, r := range rep.Results {
		assert.True(t, r.Passed, "%s: %s %v", r.Name, r.Error, r.Failures)
	}
	assert.True(t, rep.OK())
	assert.Equal(t, 3, rep.Passed)
	assert.Nil(t, tok.pranked)

	reverted := rep.Results[1]
	assert.True(t, reverted.ExpectRevert)
	assert.True(t, reverted.Reverted)
	assert.Contains(t, reverted.Reason, "ERC20InsufficientBalance")
}

func TestRunAllPassesInNodeMode(t *testing.T) {
	s, _, node := nodeSession(t)
	rep := NewRunner(s).RunAll(context.Background(), Actions())

	for _, r := range rep.Results {
		assert.True(t, r.Passed, "%s: %s %v", r.Name, r.Error, r.Failures)
	}
	assert.Empty(t, node.imp, "no account left impersonated")
}

func TestActionsAreRepeatable(t *testing.T) {
	s, _ := contractSession(t)
	r := NewRunner(s)
	for i := 0; i < 3; i++ {
		rep := r.RunAll(context.Background(), Actions())
		require.True(t, rep.OK(), "round %d: %+v", i, rep.Results)
	}
}

func TestTransferTopsUpDrainedAlice(t *testing.T) {
	s, tok := contractSession(t)
	tok.balances[aliceAddr] = new(big.Int)

	a, _ := Find("testTransfer")
	res := NewRunner(s).Run(context.Background(), a)
	assert.True(t, res.Passed, res.Error)
}

func TestFailedTransferLeavesNoPendingPrank(t *testing.T) {
	s, tok := contractSession(t)
	a, _ := Find("testFailTransferInsufficientBalance")

	res := NewRunner(s).Run(context.Background(), a)
	require.True(t, res.Passed, res.Error)
	assert.Nil(t, tok.pranked, "reverted write must not leave the contract pranked")

	// The next write is sent as the operator again.
	require.NoError(t, s.Approve(context.Background(), bobAddr, big.NewInt(1)))
	got, _ := tok.Allowance(context.Background(), operatorAddr, bobAddr)
	assert.Equal(t, "1", got.String())
}

func TestExpectRevertFailsOnSuccess(t *testing.T) {
	s, _ := contractSession(t)
	a := Action{
		Name:         "noRevert",
		ExpectRevert: true,
		Run: func(ctx context.Context, s *Session, _ *T) error {
			return s.Transfer(ctx, bobAddr, big.NewInt(0))
		},
	}
	res := NewRunner(s).Run(context.Background(), a)
	assert.False(t, res.Passed)
	assert.Equal(t, ErrUnexpectedSuccess.Error(), res.Error)
}

func TestExpectRevertSetupErrorIsAFailure(t *testing.T) {
	s, _ := contractSession(t)
	a := Action{
		Name:         "brokenSetup",
		ExpectRevert: true,
		Run: func(context.Context, *Session, *T) error {
			return errors.New("rpc unavailable")
		},
	}
	res := NewRunner(s).Run(context.Background(), a)
	assert.False(t, res.Passed)
	assert.Equal(t, "rpc unavailable", res.Error)
}

func TestAssertionsDoNotHalt(t *testing.T) {
	s, _ := contractSession(t)
	reached := false
	a := Action{
		Name: "twoFailures",
		Run: func(_ context.Context, _ *Session, t *T) error {
			t.True(false, "first")
			t.Eq(big.NewInt(1), big.NewInt(2), "second")
			reached = true
			return nil
		},
	}
	res := NewRunner(s).Run(context.Background(), a)
	assert.True(t, reached)
	assert.False(t, res.Passed)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "first", res.Failures[0])
	assert.Contains(t, res.Failures[1], "second: got 1")
	assert.Empty(t, res.Error)
}

func TestShortAllowanceFailsAssertTrue(t *testing.T) {
	s, tok := contractSession(t)
	tok.approveCap = big.NewInt(10)

	a, ok := Find("testApproveAndTransferFrom")
	require.True(t, ok)
	res := NewRunner(s).Run(context.Background(), a)

	assert.False(t, res.Passed)
	assert.Contains(t, res.Failures, "allowance covers transferFrom")
	assert.NotEmpty(t, res.Error, "the transferFrom itself reverts")
}

func TestDanglingPrankFailsActionAndIsCleared(t *testing.T) {
	s, tok := contractSession(t)
	a := Action{
		Name: "dangling",
		Run: func(ctx context.Context, s *Session, _ *T) error {
			return s.Prank.Prank(ctx, aliceAddr)
		},
	}
	r := NewRunner(s)
	res := r.Run(context.Background(), a)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "prank")
	assert.Nil(t, tok.pranked)

	next, _ := Find("testTransfer")
	assert.True(t, r.Run(context.Background(), next).Passed)
}

func TestUnbalancedPrankReportsActionErrorFirst(t *testing.T) {
	s, _ := contractSession(t)
	a := Action{
		Name: "abortsInBracket",
		Run: func(ctx context.Context, s *Session, _ *T) error {
			if err := s.Prank.StartPrank(ctx, aliceAddr); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}
	res := NewRunner(s).Run(context.Background(), a)
	assert.Equal(t, "boom", res.Error)
	_, mode := s.Prank.Active()
	assert.Equal(t, prank.None, mode)
}

func TestPanicIsRecovered(t *testing.T) {
	s, _ := contractSession(t)
	a := Action{
		Name: "panics",
		Run: func(context.Context, *Session, *T) error {
			panic("kaboom")
		},
	}
	res := NewRunner(s).Run(context.Background(), a)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "kaboom")
}

func TestIsolationSnapshotsEachAction(t *testing.T) {
	s, _ := contractSession(t)
	node := newFakeNode()
	r := NewRunner(s, WithIsolation(node))
	require.True(t, r.Isolated())

	rep := r.RunAll(context.Background(), Actions())
	assert.True(t, rep.OK())
	assert.Len(t, node.snaps, 3)
	assert.Len(t, node.reset, 3)
}

func TestIsolationRevertsAfterCancel(t *testing.T) {
	s, _ := contractSession(t)
	node := newFakeNode()
	r := NewRunner(s, WithIsolation(node))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := r.Run(ctx, Action{
		Name: "cancelMidway",
		Run: func(ctx context.Context, s *Session, _ *T) error {
			if err := s.Prank.StartPrank(ctx, s.Accounts.Alice); err != nil {
				return err
			}
			cancel()
			return ctx.Err()
		},
	})

	assert.False(t, res.Passed)
	assert.Equal(t, []string{"0x1"}, node.reset, "snapshot must be reverted after Ctrl-C")
	_, mode := s.Prank.Active()
	assert.Equal(t, prank.None, mode)
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	s, tok := contractSession(t)
	before := tok.writes
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := NewRunner(s).RunAll(ctx, Actions())
	assert.Equal(t, 3, rep.Failed)
	assert.Equal(t, before, tok.writes)
}

func TestFind(t *testing.T) {
	a, ok := Find("testApproveAndTransferFrom")
	require.True(t, ok)
	assert.False(t, a.ExpectRevert)

	_, ok = Find("testNope")
	assert.False(t, ok)
}

func TestReportEncode(t *testing.T) {
	rep := NewReport("run-1")
	rep.Add(Result{Name: "a", Passed: true})
	rep.Add(Result{Name: "b", Error: "x"})
	assert.False(t, rep.OK())

	var buf bytes.Buffer
	require.NoError(t, rep.Encode(&buf, FormatJSON))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.EqualValues(t, 1, decoded["failed"])

	buf.Reset()
	require.NoError(t, rep.Encode(&buf, FormatYAML))
	var y map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &y))
	assert.Equal(t, "run-1", y["run_id"])

	assert.Error(t, rep.Encode(&buf, "xml"))
}

func TestNewReportGeneratesRunID(t *testing.T) {
	a, b := NewReport(""), NewReport("")
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}
