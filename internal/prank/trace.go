// Package prank interprets Foundry-style impersonation directives.
//
// prank(who) applies to the next state-changing call only. startPrank(who)
// applies to every call until stopPrank(). Nesting is not allowed: a
// directive issued while one is active is an error, and an action that ends
// with a bracket still open fails.
package prank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAlreadyPranking = errors.New("already impersonating")
	ErrNotPranking     = errors.New("stopPrank without startPrank")
	ErrUnbalancedPrank = errors.New("startPrank without matching stopPrank")
	ErrDanglingPrank   = errors.New("prank never consumed by a call")
)

// Mode is what kind of impersonation is active.
type Mode int

const (
	None    Mode = iota
	OneShot      // prank: next write only
	Bracket      // startPrank … stopPrank
)

func (m Mode) String() string {
	switch m {
	case OneShot:
		return "prank"
	case Bracket:
		return "startPrank"
	}
	return "none"
}

// Op is one entry in a Trace.
type Op string

const (
	OpPrank      Op = "prank"
	OpStartPrank Op = "startPrank"
	OpStopPrank  Op = "stopPrank"
	OpCall       Op = "call" // a state-changing call
)

// Step is one recorded directive or write.
type Step struct {
	Op  Op
	Who common.Address // zero for stopPrank and calls
}

func (s Step) String() string {
	if s.Who == (common.Address{}) {
		return string(s.Op)
	}
	return fmt.Sprintf("%s(%s)", s.Op, s.Who.Hex())
}

// Trace is the ordered list of steps of one action.
type Trace []Step

// state is the interpreter's explicit "who, and how" record.
type state struct {
	mode Mode
	who  common.Address
}

// next applies one step. On error the state is unchanged.
func (s state) next(step Step) (state, error) {
	switch step.Op {
	case OpPrank, OpStartPrank:
		if s.mode != None {
			return s, fmt.Errorf("%w: %s(%s) is active", ErrAlreadyPranking, s.mode, s.who.Hex())
		}
		mode := OneShot
		if step.Op == OpStartPrank {
			mode = Bracket
		}
		return state{mode: mode, who: step.Who}, nil
	case OpStopPrank:
		if s.mode != Bracket {
			return s, ErrNotPranking
		}
		return state{}, nil
	case OpCall:
		if s.mode == OneShot {
			return state{}, nil
		}
		return s, nil
	}
	return s, fmt.Errorf("unknown step %q", step.Op)
}

// end reports what is left open when an action finishes.
func (s state) end() error {
	switch s.mode {
	case Bracket:
		return fmt.Errorf("%w: %s", ErrUnbalancedPrank, s.who.Hex())
	case OneShot:
		return fmt.Errorf("%w: %s", ErrDanglingPrank, s.who.Hex())
	}
	return nil
}

// CheckTrace replays trace and rejects nesting, stray stopPrank and anything
// left open at the end.
func CheckTrace(trace Trace) error {
	var s state
	for i, step := range trace {
		var err error
		if s, err = s.next(step); err != nil {
			return fmt.Errorf("step %d %s: %w", i+1, step, err)
		}
	}
	return s.end()
}
