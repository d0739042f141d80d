package cache

import (
	"errors"
	"sync/atomic"
	"time"
)

var ErrCircuitOpen = errors.New("cache: circuit breaker open")

const (
	circuitClosed uint32 = iota
	circuitOpen
	circuitHalfOpen
)

type CircuitBreakerConfig struct {
	FailureThreshold int32
	ResetTimeout     time.Duration
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker short-circuits calls to the L2 store after consecutive
// failures. After ResetTimeout a single trial call is let through.
type CircuitBreaker struct {
	failures    atomic.Int32
	state       atomic.Uint32
	lastFailure atomic.Int64
	threshold   int32
	resetAfter  time.Duration

	rejected atomic.Int64
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}
	return &CircuitBreaker{
		threshold:  config.FailureThreshold,
		resetAfter: config.ResetTimeout,
	}
}

func (cb *CircuitBreaker) allow() bool {
	for {
		switch cb.state.Load() {
		case circuitOpen:
			lastFail := time.Unix(0, cb.lastFailure.Load())
			if time.Since(lastFail) <= cb.resetAfter {
				return false
			}
			if cb.state.CompareAndSwap(circuitOpen, circuitHalfOpen) {
				return true
			}
		case circuitHalfOpen:
			return false
		default:
			return true
		}
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failures.Store(0)
	cb.state.Store(circuitClosed)
}

func (cb *CircuitBreaker) recordFailure() {
	cb.lastFailure.Store(time.Now().UnixNano())
	if cb.state.Load() == circuitHalfOpen || cb.failures.Add(1) >= cb.threshold {
		cb.state.Store(circuitOpen)
	}
}

// Execute runs fn unless the circuit is open. ErrCacheMiss counts as a
// success: a miss means the store answered.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		cb.rejected.Add(1)
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return err
}

func (cb *CircuitBreaker) State() string {
	switch cb.state.Load() {
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"state":    cb.State(),
		"failures": cb.failures.Load(),
		"rejected": cb.rejected.Load(),
	}
}
