package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrOpen is returned while the breaker is rejecting calls outright.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrThrottled is returned when the half-open probe budget is in use.
	ErrThrottled = errors.New("circuit breaker is probing")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config tunes a Breaker. Zero values fall back to defaults.
type Config struct {
	FailureThreshold uint32        // consecutive failures that trip the breaker
	SuccessThreshold uint32        // consecutive half-open successes that close it
	Cooldown         time.Duration // how long to stay open before probing
	MaxProbes        uint32        // concurrent calls allowed while half-open
	Logger           *zap.Logger
}

// Breaker trips after a run of consecutive failures, rejects calls for a
// cooldown period, then lets a bounded number of probes through. Enough
// probe successes close it again; any probe failure reopens it.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	inflight  uint32
	openedAt  time.Time
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.MaxProbes == 0 {
		cfg.MaxProbes = 1
	}

	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Execute runs fn if the breaker admits the call, and records the outcome.
// A panic in fn counts as a failure before it propagates.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(probe, false)
			panic(r)
		}
	}()

	err = fn()
	b.record(probe, err == nil)
	return err
}

// admit decides whether a call may proceed. The returned flag marks the
// call as a half-open probe so record can balance the probe budget.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return false, ErrOpen
		}
		b.transition(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.inflight >= b.cfg.MaxProbes {
			return false, ErrThrottled
		}
		b.inflight++
		return true, nil
	}

	return false, nil
}

func (b *Breaker) record(probe, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		if b.inflight > 0 {
			b.inflight--
		}
		if b.state != StateHalfOpen {
			return
		}
		if success {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
			}
		} else {
			b.transition(StateOpen)
		}
		return
	}

	if b.state != StateClosed {
		return
	}
	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(state State) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.failures = 0
	b.successes = 0
	b.inflight = 0
	if state == StateOpen {
		b.openedAt = time.Now()
	}

	if b.logger != nil {
		b.logger.Info("Circuit breaker state changed",
			zap.String("name", b.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}
