package prank

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Interpreter tracks who is being impersonated and applies directives
// through a Backend. It is safe for concurrent use, though the suite runs
// one action at a time.
type Interpreter struct {
	mu      sync.Mutex
	backend Backend
	state   state
	trace   Trace
	log     *zap.Logger
}

// New returns an Interpreter with nothing active.
func New(backend Backend, log *zap.Logger) *Interpreter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interpreter{backend: backend, log: log}
}

// Prank impersonates who for the next state-changing call only.
func (p *Interpreter) Prank(ctx context.Context, who common.Address) error {
	return p.begin(ctx, Step{Op: OpPrank, Who: who}, p.backend.Prank)
}

// StartPrank impersonates who until StopPrank.
func (p *Interpreter) StartPrank(ctx context.Context, who common.Address) error {
	return p.begin(ctx, Step{Op: OpStartPrank, Who: who}, p.backend.StartPrank)
}

func (p *Interpreter) begin(ctx context.Context, step Step, apply func(context.Context, common.Address) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := p.state.next(step)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if err := apply(ctx, step.Who); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	p.state = next
	p.trace = append(p.trace, step)
	p.log.Debug("impersonating", zap.Stringer("mode", next.mode), zap.String("who", step.Who.Hex()))
	return nil
}

// StopPrank ends a startPrank bracket.
func (p *Interpreter) StopPrank(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	step := Step{Op: OpStopPrank}
	next, err := p.state.next(step)
	if err != nil {
		return err
	}
	// The bracket stays open until the backend confirms, so Close can retry
	// and report it.
	who := p.state.who
	if err := p.backend.StopPrank(ctx, who); err != nil {
		return fmt.Errorf("stopPrank: %w", err)
	}
	p.state = next
	p.trace = append(p.trace, step)
	p.log.Debug("impersonation stopped", zap.String("who", who.Hex()))
	return nil
}

// Active returns the impersonated address and mode; mode is None when idle.
func (p *Interpreter) Active() (common.Address, Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.who, p.state.mode
}

// Sender is the address the next write should be sent from.
func (p *Interpreter) Sender() common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.mode == None {
		return p.backend.Sender(nil)
	}
	who := p.state.who
	return p.backend.Sender(&who)
}

// AfterCall records a state-changing call and consumes a one-shot prank.
// Reads never call it. The returned error joins callErr with any cleanup
// failure.
func (p *Interpreter) AfterCall(ctx context.Context, callErr error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.state
	p.state, _ = p.state.next(Step{Op: OpCall})
	p.trace = append(p.trace, Step{Op: OpCall})
	if prev.mode != OneShot {
		return callErr
	}
	if err := p.backend.Consumed(ctx, prev.who, callErr); err != nil {
		return errors.Join(callErr, fmt.Errorf("clearing prank(%s): %w", prev.who.Hex(), err))
	}
	return callErr
}

// Close ends an action. Anything still open is force-cleared so the next
// action starts clean, and reported as ErrUnbalancedPrank (open bracket) or
// ErrDanglingPrank (unused prank). The trace is returned and reset.
func (p *Interpreter) Close(ctx context.Context) (Trace, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	trace := p.trace
	p.trace = nil

	open := p.state.end()
	if open == nil {
		return trace, nil
	}
	who := p.state.who
	p.state = state{}
	p.log.Warn("clearing impersonation left open", zap.String("who", who.Hex()), zap.Error(open))
	if err := p.backend.StopPrank(ctx, who); err != nil {
		return trace, errors.Join(open, fmt.Errorf("force stopPrank: %w", err))
	}
	return trace, open
}

// Trace returns a copy of the steps recorded since the last Close.
func (p *Interpreter) Trace() Trace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(Trace(nil), p.trace...)
}
