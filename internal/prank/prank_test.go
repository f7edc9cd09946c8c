package prank

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

// fakeCheats records node-level impersonation calls.
type fakeCheats struct {
	log      []string
	fail     error
	stopFail error
}

func (f *fakeCheats) ImpersonateAccount(_ context.Context, a common.Address) error {
	if f.fail != nil {
		return f.fail
	}
	f.log = append(f.log, "impersonate "+a.Hex())
	return nil
}

func (f *fakeCheats) StopImpersonatingAccount(_ context.Context, a common.Address) error {
	if f.stopFail != nil {
		return f.stopFail
	}
	f.log = append(f.log, "stop "+a.Hex())
	return nil
}

// fakeToken records contract-level prank calls.
type fakeToken struct {
	log []string
}

func (f *fakeToken) Prank(_ context.Context, from, who common.Address) error {
	f.log = append(f.log, "prank "+who.Hex()+" by "+from.Hex())
	return nil
}

func (f *fakeToken) StartPrank(_ context.Context, from, who common.Address) error {
	f.log = append(f.log, "startPrank "+who.Hex()+" by "+from.Hex())
	return nil
}

func (f *fakeToken) StopPrank(_ context.Context, from common.Address) error {
	f.log = append(f.log, "stopPrank by "+from.Hex())
	return nil
}

func newNode() (*Interpreter, *fakeCheats) {
	c := &fakeCheats{}
	return New(&NodeBackend{Node: c, Operator: operator}, nil), c
}

// ---------------------------------------------------------------------------
// CheckTrace
// ---------------------------------------------------------------------------

func TestCheckTraceBalanced(t *testing.T) {
	assert.NoError(t, CheckTrace(Trace{
		{Op: OpStartPrank, Who: alice},
		{Op: OpCall},
		{Op: OpCall},
		{Op: OpStopPrank},
		{Op: OpPrank, Who: bob},
		{Op: OpCall},
	}))
	assert.NoError(t, CheckTrace(nil))
}

func TestCheckTraceRejects(t *testing.T) {
	tests := []struct {
		name  string
		trace Trace
		want  error
	}{
		{"unbalanced startPrank", Trace{{Op: OpStartPrank, Who: alice}, {Op: OpCall}}, ErrUnbalancedPrank},
		{"stray stopPrank", Trace{{Op: OpStopPrank}}, ErrNotPranking},
		{"stopPrank after one-shot", Trace{{Op: OpPrank, Who: alice}, {Op: OpStopPrank}}, ErrNotPranking},
		{"nested startPrank", Trace{{Op: OpStartPrank, Who: alice}, {Op: OpStartPrank, Who: bob}}, ErrAlreadyPranking},
		{"prank inside bracket", Trace{{Op: OpStartPrank, Who: alice}, {Op: OpPrank, Who: bob}}, ErrAlreadyPranking},
		{"unused prank", Trace{{Op: OpPrank, Who: alice}}, ErrDanglingPrank},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, CheckTrace(tt.trace), tt.want)
		})
	}
}

// ---------------------------------------------------------------------------
// Interpreter, node backend
// ---------------------------------------------------------------------------

func TestOneShotAppliesToNextWriteOnly(t *testing.T) {
	ctx := context.Background()
	p, cheats := newNode()

	assert.Equal(t, operator, p.Sender())
	require.NoError(t, p.Prank(ctx, alice))
	assert.Equal(t, alice, p.Sender())

	// Reads do not call AfterCall, so the prank survives them.
	assert.Equal(t, alice, p.Sender())

	require.NoError(t, p.AfterCall(ctx, nil))
	assert.Equal(t, operator, p.Sender())
	_, mode := p.Active()
	assert.Equal(t, None, mode)

	assert.Equal(t, []string{"impersonate " + alice.Hex(), "stop " + alice.Hex()}, cheats.log)
}

func TestBracketPersistsAcrossWrites(t *testing.T) {
	ctx := context.Background()
	p, _ := newNode()

	require.NoError(t, p.StartPrank(ctx, bob))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.AfterCall(ctx, nil))
		assert.Equal(t, bob, p.Sender())
	}
	require.NoError(t, p.StopPrank(ctx))
	assert.Equal(t, operator, p.Sender())

	trace, err := p.Close(ctx)
	require.NoError(t, err)
	assert.NoError(t, CheckTrace(trace))
	assert.Len(t, trace, 5)
}

func TestNestingRejectedAndStateKept(t *testing.T) {
	ctx := context.Background()
	p, cheats := newNode()

	require.NoError(t, p.StartPrank(ctx, alice))
	err := p.Prank(ctx, bob)
	assert.ErrorIs(t, err, ErrAlreadyPranking)
	assert.ErrorIs(t, p.StartPrank(ctx, bob), ErrAlreadyPranking)

	who, mode := p.Active()
	assert.Equal(t, alice, who)
	assert.Equal(t, Bracket, mode)
	assert.Len(t, cheats.log, 1, "rejected directives never reach the node")
}

func TestStopPrankWithoutStart(t *testing.T) {
	p, _ := newNode()
	assert.ErrorIs(t, p.StopPrank(context.Background()), ErrNotPranking)
}

func TestCloseForceClearsOpenBracket(t *testing.T) {
	ctx := context.Background()
	p, cheats := newNode()

	require.NoError(t, p.StartPrank(ctx, alice))
	_, err := p.Close(ctx)
	assert.ErrorIs(t, err, ErrUnbalancedPrank)
	assert.Equal(t, "stop "+alice.Hex(), cheats.log[len(cheats.log)-1])

	_, mode := p.Active()
	assert.Equal(t, None, mode)
	assert.Empty(t, p.Trace())

	// Session is usable again.
	require.NoError(t, p.Prank(ctx, bob))
}

func TestCloseReportsDanglingPrank(t *testing.T) {
	ctx := context.Background()
	p, _ := newNode()

	require.NoError(t, p.Prank(ctx, alice))
	_, err := p.Close(ctx)
	assert.ErrorIs(t, err, ErrDanglingPrank)
}

func TestBackendFailureLeavesStateIdle(t *testing.T) {
	c := &fakeCheats{fail: errors.New("method not found")}
	p := New(&NodeBackend{Node: c, Operator: operator}, nil)

	require.Error(t, p.Prank(context.Background(), alice))
	_, mode := p.Active()
	assert.Equal(t, None, mode)
	assert.Empty(t, p.Trace())
}

func TestFailedStopKeepsBracketOpen(t *testing.T) {
	ctx := context.Background()
	c := &fakeCheats{}
	p := New(&NodeBackend{Node: c, Operator: operator}, nil)

	require.NoError(t, p.StartPrank(ctx, alice))
	c.stopFail = errors.New("connection reset")
	require.Error(t, p.StopPrank(ctx))

	who, mode := p.Active()
	assert.Equal(t, Bracket, mode)
	assert.Equal(t, alice, who)
	assert.Equal(t, alice, p.Sender(), "writes still go out as the impersonated account")

	c.stopFail = nil
	trace, err := p.Close(ctx)
	assert.ErrorIs(t, err, ErrUnbalancedPrank)
	assert.Error(t, CheckTrace(trace))
	assert.Equal(t, []string{"impersonate " + alice.Hex(), "stop " + alice.Hex()}, c.log)
	_, mode = p.Active()
	assert.Equal(t, None, mode)
}

func TestAfterCallPassesCallErrorThrough(t *testing.T) {
	ctx := context.Background()
	p, _ := newNode()
	callErr := errors.New("reverted")

	require.NoError(t, p.Prank(ctx, alice))
	assert.ErrorIs(t, p.AfterCall(ctx, callErr), callErr)
	_, mode := p.Active()
	assert.Equal(t, None, mode, "a failed call still consumes the prank")

	assert.ErrorIs(t, p.AfterCall(ctx, callErr), callErr)
}

// ---------------------------------------------------------------------------
// Interpreter, contract backend
// ---------------------------------------------------------------------------

func TestContractBackendSendsFromOperator(t *testing.T) {
	ctx := context.Background()
	tok := &fakeToken{}
	p := New(&ContractBackend{Token: tok, Operator: operator}, nil)

	require.NoError(t, p.StartPrank(ctx, alice))
	assert.Equal(t, operator, p.Sender())
	require.NoError(t, p.AfterCall(ctx, nil))
	require.NoError(t, p.StopPrank(ctx))

	assert.Equal(t, []string{
		"startPrank " + alice.Hex() + " by " + operator.Hex(),
		"stopPrank by " + operator.Hex(),
	}, tok.log)
}

func TestContractBackendClearsPrankAfterFailedCall(t *testing.T) {
	ctx := context.Background()
	tok := &fakeToken{}
	p := New(&ContractBackend{Token: tok, Operator: operator}, nil)

	require.NoError(t, p.Prank(ctx, alice))
	require.Error(t, p.AfterCall(ctx, errors.New("insufficient balance")))
	assert.Equal(t, "stopPrank by "+operator.Hex(), tok.log[len(tok.log)-1])

	require.NoError(t, p.Prank(ctx, bob))
	require.NoError(t, p.AfterCall(ctx, nil))
	assert.Len(t, tok.log, 3, "a successful call leaves consumption to the contract")
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "prank", OneShot.String())
	assert.Equal(t, "startPrank", Bracket.String())
	assert.Equal(t, "prank("+alice.Hex()+")", Step{Op: OpPrank, Who: alice}.String())
	assert.Equal(t, "stopPrank", Step{Op: OpStopPrank}.String())
}
