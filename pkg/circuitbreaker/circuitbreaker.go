package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	// Consecutive failures that open the breaker.
	FailureThreshold int
	// Half-open successes that close it again.
	SuccessThreshold int
	// How long the breaker stays open before probing.
	Timeout time.Duration
	// Concurrent probes allowed while half-open.
	HalfOpenMaxRequests int
	// Called with the breaker lock released.
	OnStateChange func(from, to State)
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	openedAt      time.Time
}

func NewCircuitBreaker(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{config: config, now: time.Now, state: StateClosed}
}

// Execute runs fn unless the breaker is open. fn's error is returned as is.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err == nil)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.setState(StateHalfOpen)
	}

	var err error
	switch cb.state {
	case StateOpen:
		err = ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			err = ErrCircuitBreakerOpen
		} else {
			cb.halfOpenCount++
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return err
}

func (cb *CircuitBreaker) after(ok bool) {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateClosed:
		if ok {
			cb.failureCount = 0
		} else {
			cb.failureCount++
			if cb.failureCount >= cb.config.FailureThreshold {
				cb.setState(StateOpen)
			}
		}
	case StateHalfOpen:
		cb.halfOpenCount--
		if !ok {
			cb.setState(StateOpen)
			break
		}
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCount = 0
	if s == StateOpen {
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}
