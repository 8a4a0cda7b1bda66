package resilience

import (
	"sync"
	"time"
)

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// Breaker counts consecutive failed attempts for one operation.
type Breaker struct {
	mu sync.Mutex

	cfg      BreakerConfig
	state    BreakerState
	failures int
	openedAt time.Time
	// trial is set while the single half-open probe is in flight.
	trial bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), state: StateClosed}
}

// Allow reports whether a call may proceed at now. After the cooldown the
// first caller moves the breaker to half-open and becomes the trial.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) < b.cfg.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.trial = true
		return true
	case StateHalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	}
	return false
}

func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trial = false
}

// Failure records one failed attempt and returns the resulting state.
func (b *Breaker) Failure(now time.Time) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.trial = false
	if b.state == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.state = StateOpen
		b.openedAt = now
	}
	return b.state
}

// Release ends a trial whose outcome says nothing about the dependency,
// e.g. a non-transient caller error.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.trial = false
	b.openedAt = time.Time{}
}

// Registry holds one breaker per operation name. It is the only in-process
// shared state of the executor.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   func(op string) BreakerConfig
}

func NewRegistry(config func(op string) BreakerConfig) *Registry {
	if config == nil {
		config = func(string) BreakerConfig { return BreakerConfig{} }
	}
	return &Registry{breakers: map[string]*Breaker{}, config: config}
}

func (r *Registry) Get(op string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[op]
	if !ok {
		b = NewBreaker(r.config(op))
		r.breakers[op] = b
	}
	return b
}

// Snapshot returns the state of every known breaker.
func (r *Registry) Snapshot() map[string]BreakerState {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	list := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make(map[string]BreakerState, len(names))
	for i, name := range names {
		out[name] = list[i].State()
	}
	return out
}

func (r *Registry) Reset(op string) {
	r.mu.Lock()
	b, ok := r.breakers[op]
	r.mu.Unlock()
	if ok {
		b.Reset()
	}
}

// Rebuild forgets every breaker drop selects; the next Get creates it from
// the current config.
func (r *Registry) Rebuild(drop func(b *Breaker) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for op, b := range r.breakers {
		if drop(b) {
			delete(r.breakers, op)
		}
	}
}
