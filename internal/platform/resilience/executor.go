package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeExhausted    Outcome = "exhausted"
	OutcomeNonTransient Outcome = "non_transient"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeCircuitOpen  Outcome = "circuit_open"
	OutcomeCanceled     Outcome = "canceled"
)

// Execution is the metrics record emitted once per Do call.
type Execution struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
	Outcome  Outcome
	Err      error
}

// Recorder receives execution records and breaker state changes.
type Recorder interface {
	RecordExecution(Execution)
	SetBreakerState(op string, state BreakerState)
}

type nopRecorder struct{}

func (nopRecorder) RecordExecution(Execution)          {}
func (nopRecorder) SetBreakerState(string, BreakerState) {}

type Executor struct {
	breakers *Registry
	policies atomic.Pointer[PolicyFile]
	rec      Recorder
	log      *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

type Option func(*Executor)

func WithRecorder(rec Recorder) Option {
	return func(e *Executor) {
		if rec != nil {
			e.rec = rec
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log.With("component", "resilience.Executor")
		}
	}
}

// WithPolicyFile applies per-operation overrides to policies and breakers.
func WithPolicyFile(f PolicyFile) Option {
	return func(e *Executor) { e.policies.Store(&f) }
}

// WithClock replaces the wall clock and the backoff sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithRand replaces the jitter source; it must return values in [0, 1).
func WithRand(r func() float64) Option {
	return func(e *Executor) {
		if r != nil {
			e.rand = r
		}
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		rec:   nopRecorder{},
		log:   logger.Nop(),
		now:   time.Now,
		sleep: sleepContext,
		rand:  rand.Float64,
	}
	e.policies.Store(&PolicyFile{})
	for _, opt := range opts {
		opt(e)
	}
	e.breakers = NewRegistry(func(op string) BreakerConfig { return e.currentPolicies().Breaker(op) })
	return e
}

func (e *Executor) currentPolicies() PolicyFile { return *e.policies.Load() }

// SetPolicyFile swaps the overrides for calls that start afterwards. Closed
// breakers are rebuilt with the new thresholds; open or half-open ones keep
// their state until they close.
func (e *Executor) SetPolicyFile(f PolicyFile) {
	e.policies.Store(&f)
	e.breakers.Rebuild(func(b *Breaker) bool { return b.State() == StateClosed })
}

func (e *Executor) Breakers() *Registry { return e.breakers }

// Do runs fn under policy p and the breaker named op.
func (e *Executor) Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unnamed"
	}
	p = e.currentPolicies().Policy(op, p).withDefaults()
	br := e.breakers.Get(op)
	start := e.now()

	var (
		attempts int
		last     error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		elapsed := e.now().Sub(start)
		if p.Timeout > 0 && elapsed >= p.Timeout {
			return e.finish(op, start, attempts, OutcomeTimeout, &TimeoutError{Op: op, Attempts: attempts, Budget: p.Timeout, Last: last})
		}
		if !br.Allow(e.now()) {
			return e.finish(op, start, attempts, OutcomeCircuitOpen, fmt.Errorf("%s: %w", op, ErrCircuitOpen))
		}

		attempts++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.Timeout-elapsed)
		}
		err := fn(actx)
		cancel()

		if err == nil {
			br.Success()
			e.rec.SetBreakerState(op, StateClosed)
			return e.finish(op, start, attempts, OutcomeSuccess, nil)
		}
		last = err

		if ctx.Err() != nil {
			br.Release()
			return e.finish(op, start, attempts, OutcomeCanceled, err)
		}

		state := br.Failure(e.now())
		e.rec.SetBreakerState(op, state)
		if state == StateOpen {
			e.log.Warn("circuit breaker open", "op", op, "failures", br.Failures())
		}

		if p.Timeout > 0 && e.now().Sub(start) >= p.Timeout {
			return e.finish(op, start, attempts, OutcomeTimeout, &TimeoutError{Op: op, Attempts: attempts, Budget: p.Timeout, Last: err})
		}
		if !p.Retryable(err) {
			return e.finish(op, start, attempts, OutcomeNonTransient, err)
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := e.jitter(p.delay(attempt), p.Jitter)
		if p.Timeout > 0 && e.now().Sub(start)+wait >= p.Timeout {
			return e.finish(op, start, attempts, OutcomeTimeout, &TimeoutError{Op: op, Attempts: attempts, Budget: p.Timeout, Last: err})
		}
		e.log.Debug("retrying", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
		if serr := e.sleep(ctx, wait); serr != nil {
			return e.finish(op, start, attempts, OutcomeCanceled, serr)
		}
	}
	return e.finish(op, start, attempts, OutcomeExhausted, &ExhaustedError{Op: op, Attempts: attempts, Last: last})
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, e *Executor, op string, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, op, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (e *Executor) jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	delta := float64(d) * frac * (2*e.rand() - 1)
	out := time.Duration(float64(d) + delta)
	if out < 0 {
		return 0
	}
	return out
}

func (e *Executor) finish(op string, start time.Time, attempts int, outcome Outcome, err error) error {
	rec := Execution{
		Op:       op,
		Attempts: attempts,
		Elapsed:  e.now().Sub(start),
		Outcome:  outcome,
		Err:      err,
	}
	e.rec.RecordExecution(rec)
	if err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn("resilient call failed",
			"op", op,
			"attempts", attempts,
			"elapsed_ms", rec.Elapsed.Milliseconds(),
			"outcome", string(outcome),
			"error", err,
		)
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
