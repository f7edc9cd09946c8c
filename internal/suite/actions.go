package suite

import (
	"context"
	"fmt"

	"github.com/Mohsinsiddi/w3probe/internal/amount"
)

// Action is one runnable check.
type Action struct {
	Name        string
	Description string
	// ExpectRevert actions pass iff the call under test fails.
	ExpectRevert bool
	Run          func(ctx context.Context, s *Session, t *T) error
}

// CallFailure wraps the error of the call an ExpectRevert action tests, so
// the runner can tell it apart from a failure while setting up that call.
type CallFailure struct {
	Err error
}

func (e *CallFailure) Error() string { return e.Err.Error() }
func (e *CallFailure) Unwrap() error { return e.Err }

// Actions returns the suite in declared order.
func Actions() []Action {
	return []Action{
		{
			Name:        "testTransfer",
			Description: "alice transfers to bob under startPrank; both balances move by the amount",
			Run:         testTransfer,
		},
		{
			Name:         "testFailTransferInsufficientBalance",
			Description:  "alice transfers more than she holds; the call must revert",
			ExpectRevert: true,
			Run:          testFailTransferInsufficientBalance,
		},
		{
			Name:        "testApproveAndTransferFrom",
			Description: "alice approves bob, bob pulls part of the allowance",
			Run:         testApproveAndTransferFrom,
		},
	}
}

// Find returns the action called name.
func Find(name string) (Action, bool) {
	for _, a := range Actions() {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Post-conditions are deltas from balances read just before the mutating
// calls, so every action can run any number of times on the same chain.

func testTransfer(ctx context.Context, s *Session, t *T) error {
	alice, bob := s.Accounts.Alice, s.Accounts.Bob
	v := s.Amounts.Transfer

	if err := s.ensureBalance(ctx, alice, v); err != nil {
		return err
	}
	aliceBefore, err := s.Balance(ctx, alice)
	if err != nil {
		return err
	}
	bobBefore, err := s.Balance(ctx, bob)
	if err != nil {
		return err
	}

	if err := s.Prank.StartPrank(ctx, alice); err != nil {
		return err
	}
	// A revert or a false return fails the write, so a nil error here is
	// the success assertion; an error aborts the action.
	if err := s.Transfer(ctx, bob, v); err != nil {
		return err
	}

	aliceAfter, err := s.Balance(ctx, alice)
	if err != nil {
		return err
	}
	bobAfter, err := s.Balance(ctx, bob)
	if err != nil {
		return err
	}
	t.Eq(aliceAfter, amount.Sub(aliceBefore, v), "alice balance after transfer")
	t.Eq(bobAfter, amount.Add(bobBefore, v), "bob balance after transfer")

	return s.Prank.StopPrank(ctx)
}

func testFailTransferInsufficientBalance(ctx context.Context, s *Session, t *T) error {
	alice, bob := s.Accounts.Alice, s.Accounts.Bob

	before, err := s.Balance(ctx, alice)
	if err != nil {
		return err
	}
	over := amount.Add(before, s.Amounts.Transfer)
	t.Logf("alice holds %s, sending %s", amount.Format(before, s.Decimals), amount.Format(over, s.Decimals))

	if err := s.Prank.Prank(ctx, alice); err != nil {
		return err
	}
	callErr := s.Transfer(ctx, bob, over)
	if callErr == nil {
		return nil
	}

	after, err := s.Balance(ctx, alice)
	if err != nil {
		return fmt.Errorf("reading balance after revert: %w", err)
	}
	t.Eq(after, before, "alice balance unchanged by failed transfer")
	return &CallFailure{Err: callErr}
}

func testApproveAndTransferFrom(ctx context.Context, s *Session, t *T) error {
	alice, bob := s.Accounts.Alice, s.Accounts.Bob
	approve, pull := s.Amounts.Approve, s.Amounts.TransferFrom

	if pull.Cmp(approve) > 0 {
		return fmt.Errorf("transferFrom amount %s exceeds approve amount %s",
			amount.Format(pull, s.Decimals), amount.Format(approve, s.Decimals))
	}
	if err := s.ensureBalance(ctx, alice, pull); err != nil {
		return err
	}
	aliceBefore, err := s.Balance(ctx, alice)
	if err != nil {
		return err
	}
	bobBefore, err := s.Balance(ctx, bob)
	if err != nil {
		return err
	}

	if err := s.Prank.Prank(ctx, alice); err != nil {
		return err
	}
	if err := s.Approve(ctx, bob, approve); err != nil {
		return err
	}
	allowed, err := s.Allowance(ctx, alice, bob)
	if err != nil {
		return err
	}
	t.Eq(allowed, approve, "allowance after approve")
	t.True(allowed.Cmp(pull) >= 0, "allowance covers transferFrom")

	if err := s.Prank.Prank(ctx, bob); err != nil {
		return err
	}
	if err := s.TransferFrom(ctx, alice, bob, pull); err != nil {
		return err
	}

	aliceAfter, err := s.Balance(ctx, alice)
	if err != nil {
		return err
	}
	bobAfter, err := s.Balance(ctx, bob)
	if err != nil {
		return err
	}
	left, err := s.Allowance(ctx, alice, bob)
	if err != nil {
		return err
	}
	t.Eq(aliceAfter, amount.Sub(aliceBefore, pull), "alice balance after transferFrom")
	t.Eq(bobAfter, amount.Add(bobBefore, pull), "bob balance after transferFrom")
	t.Eq(left, amount.Sub(approve, pull), "allowance after transferFrom")
	return nil
}
