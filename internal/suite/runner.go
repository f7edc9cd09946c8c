package suite

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3probe/internal/chain"
	"go.uber.org/zap"
)

const cleanupTimeout = 10 * time.Second

// ErrUnexpectedSuccess fails an ExpectRevert action whose call went through.
var ErrUnexpectedSuccess = errors.New("expected the call to revert, but it succeeded")

// Snapshotter takes and restores chain state for isolated runs.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}

// Result is the outcome of one action.
type Result struct {
	Name         string   `json:"name"                yaml:"name"`
	Passed       bool     `json:"passed"              yaml:"passed"`
	ExpectRevert bool     `json:"expect_revert"       yaml:"expect_revert"`
	Reverted     bool     `json:"reverted"            yaml:"reverted"`
	Reason       string   `json:"reason,omitempty"    yaml:"reason,omitempty"`
	Error        string   `json:"error,omitempty"     yaml:"error,omitempty"`
	Failures     []string `json:"failures,omitempty"  yaml:"failures,omitempty"`
	DurationMS   int64    `json:"duration_ms"         yaml:"duration_ms"`
}

// Duration returns how long the action took.
func (r Result) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithIsolation wraps every action in a snapshot that is reverted afterwards.
func WithIsolation(s Snapshotter) RunnerOption {
	return func(r *Runner) { r.snap = s }
}

// WithRunID stamps reports with id instead of a generated one.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.runID = id }
}

// Runner executes actions one at a time against a session.
type Runner struct {
	mu      sync.Mutex
	session *Session
	snap    Snapshotter
	runID   string
	log     *zap.Logger
}

// NewRunner returns a runner for s.
func NewRunner(s *Session, opts ...RunnerOption) *Runner {
	r := &Runner{session: s, log: s.Log}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Isolated reports whether actions run inside a snapshot.
func (r *Runner) Isolated() bool { return r.snap != nil }

// Run executes a. Concurrent calls are serialised; prank state never leaks
// from one action into the next.
func (r *Runner) Run(ctx context.Context, a Action) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	log := r.log.With(zap.String("action", a.Name))
	res := Result{Name: a.Name, ExpectRevert: a.ExpectRevert}

	if r.snap != nil {
		id, err := r.snap.Snapshot(ctx)
		if err != nil {
			res.Error = fmt.Sprintf("snapshot: %v", err)
			log.Error("FAIL", zap.String("error", res.Error))
			return finish(res, start)
		}
		defer func() {
			rctx, cancel := cleanupContext(ctx)
			defer cancel()
			if err := r.snap.Revert(rctx, id); err != nil {
				log.Warn("could not revert snapshot", zap.String("id", id), zap.Error(err))
			}
		}()
	}

	t := newT(log, r.session.Decimals)
	err := r.invoke(ctx, a, t)
	cctx, cancel := cleanupContext(ctx)
	_, closeErr := r.session.Prank.Close(cctx)
	cancel()

	res.Failures = t.Failures()
	var cf *CallFailure
	switch {
	case a.ExpectRevert && errors.As(err, &cf):
		res.Reverted = chain.IsRevert(cf.Err)
		res.Reason = cf.Err.Error()
	case a.ExpectRevert && err == nil:
		res.Error = ErrUnexpectedSuccess.Error()
	case err != nil:
		res.Error = err.Error()
		res.Reverted = chain.IsRevert(err)
	}
	if closeErr != nil && res.Error == "" {
		res.Error = closeErr.Error()
	}
	res.Passed = res.Error == "" && len(res.Failures) == 0

	if res.Passed {
		log.Info("PASS", zap.String("reason", res.Reason))
	} else {
		log.Error("FAIL", zap.String("error", res.Error), zap.Strings("failures", res.Failures))
	}
	return finish(res, start)
}

// RunAll runs actions in order and collects a report.
func (r *Runner) RunAll(ctx context.Context, actions []Action) *Report {
	rep := NewReport(r.runID)
	for _, a := range actions {
		if ctx.Err() != nil {
			rep.Add(Result{Name: a.Name, ExpectRevert: a.ExpectRevert, Error: ctx.Err().Error()})
			continue
		}
		rep.Add(r.Run(ctx, a))
	}
	return rep
}

func (r *Runner) invoke(ctx context.Context, a Action, t *T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("action panicked", zap.String("action", a.Name), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a.Run(ctx, r.session, t)
}

func finish(res Result, start time.Time) Result {
	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

// cleanupContext outlives a cancelled run so stopPrank and evm_revert still
// reach the node after Ctrl-C.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
