package adminapi

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is refused without any network
// attempt because the admin API breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open: admin API temporarily unavailable")

// State is a read-only snapshot of a breaker, exposed for health checks and
// operational tooling.
type State struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	IsOpen              bool       `json:"is_open"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	NextRetryAt         *time.Time `json:"next_retry_at,omitempty"`
}

// Breaker tracks consecutive failures against one downstream dependency and
// fails fast once a threshold is crossed. Construct one per dependency and
// share it across requests; all methods are safe for concurrent use.
//
// Recovery is modeled without a distinct half-open state: the first Allow
// after the retry deadline flips the breaker back to closed before the
// attempt is issued, so every request in the recovery window passes through
// until failures reaccumulate.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	consecutiveFailures int
	isOpen              bool
	openedAt            time.Time
	nextRetryAt         time.Time

	now func() time.Time
}

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 60 * time.Second
)

// NewBreaker creates a breaker. Non-positive arguments fall back to the
// defaults (5 failures, 60s cooldown).
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open and before the retry
// deadline it returns ErrCircuitOpen; once the deadline has passed the
// breaker closes optimistically and the call becomes the recovery probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isOpen {
		return nil
	}
	if b.now().Before(b.nextRetryAt) {
		return ErrCircuitOpen
	}
	// Retry deadline reached: close before the attempt, win or lose.
	b.isOpen = false
	return nil
}

// RecordSuccess resets the consecutive failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.consecutiveFailures = 0
	b.mu.Unlock()
}

// RecordFailure increments the consecutive failure count and opens the
// breaker when the threshold is crossed. The caller still receives the
// underlying error; the breaker only observes.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold && !b.isOpen {
		now := b.now()
		b.isOpen = true
		b.openedAt = now
		b.nextRetryAt = now.Add(b.cooldown)
	}
}

// State returns a snapshot of the breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := State{
		ConsecutiveFailures: b.consecutiveFailures,
		IsOpen:              b.isOpen,
	}
	if !b.openedAt.IsZero() {
		openedAt := b.openedAt
		s.OpenedAt = &openedAt
	}
	if b.isOpen {
		nextRetryAt := b.nextRetryAt
		s.NextRetryAt = &nextRetryAt
	}
	return s
}

// ForceClose closes the breaker and clears the failure count, bypassing the
// normal transition rules. Intended for operational recovery.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	b.isOpen = false
	b.consecutiveFailures = 0
	b.mu.Unlock()
}
