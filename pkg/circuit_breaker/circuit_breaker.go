package circuit_breaker

import (
	"errors"
	"sync"
	"time"
)

type Status uint8

const (
	Closed Status = iota + 1
	Open
	HalfOpen
)

var ErrOpenCB = errors.New("circuit breaker is open")

type CircuitBreaker interface {
	Call(service func() error) error
	Reset()
}

type circuitBreaker struct {
	mu    sync.Mutex
	state Status

	// sliding window of the last recordLength call outcomes
	buffer []bool
	pos    int

	// share of failed calls in the window that opens the breaker
	percentile float64
	// how long the breaker stays open before probing
	timeout         time.Duration
	lastAttemptedAt time.Time
	// consecutive successes in half-open needed to close again
	recoveryRequests int
	successCount     int
}

func New(recordLength int, timeout time.Duration, percentile float64, recoveryRequests int) CircuitBreaker {
	return &circuitBreaker{
		state:            Closed,
		buffer:           make([]bool, recordLength),
		percentile:       percentile,
		timeout:          timeout,
		recoveryRequests: recoveryRequests,
	}
}

func (cb *circuitBreaker) Call(service func() error) error {
	cb.mu.Lock()
	if cb.state == Open {
		if time.Since(cb.lastAttemptedAt) <= cb.timeout {
			cb.mu.Unlock()
			return ErrOpenCB
		}
		cb.state = HalfOpen
		cb.successCount = 0
	}
	cb.mu.Unlock()

	err := service()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.buffer[cb.pos] = err != nil
	cb.pos = (cb.pos + 1) % len(cb.buffer)

	if cb.state == HalfOpen {
		if err != nil {
			cb.state = Open
			cb.successCount = 0
			cb.lastAttemptedAt = time.Now()
		} else if cb.successCount++; cb.successCount > cb.recoveryRequests {
			cb.Reset()
		}
		return err
	}

	fails := 0
	for _, failed := range cb.buffer {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(len(cb.buffer)) >= cb.percentile {
		cb.state = Open
		cb.successCount = 0
		cb.lastAttemptedAt = time.Now()
	}

	return err
}

func (cb *circuitBreaker) Reset() {
	for i := range cb.buffer {
		cb.buffer[i] = false
	}
	cb.pos = 0
	cb.successCount = 0
	cb.state = Closed
}
