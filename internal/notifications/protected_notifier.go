package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("mail circuit breaker open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

type ProtectedNotifierConfig struct {
	Timeout          time.Duration // per send
	FailureThreshold int           // consecutive failures that open the breaker
	Cooldown         time.Duration // time spent open before a trial send
	HalfOpenMaxCalls int           // concurrent trial sends

	// OnStateChange runs outside the lock after every transition.
	OnStateChange func(from, to string)
}

// ProtectedNotifier bounds each send with a timeout and stops calling a
// failing SMTP relay until the cooldown passes. A caller that goes away
// mid-send does not count against the relay.
type ProtectedNotifier struct {
	inner Notifier
	cfg   ProtectedNotifierConfig

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	trials   int

	now func() time.Time
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedNotifier{
		inner: inner,
		cfg:   cfg,
		state: stateClosed,
		now:   time.Now,
	}
}

func (n *ProtectedNotifier) SendAccountConfirmation(ctx context.Context, input AccountEmail) error {
	return n.guard(ctx, func(ctx context.Context) error {
		return n.inner.SendAccountConfirmation(ctx, input)
	})
}

func (n *ProtectedNotifier) SendPasswordReset(ctx context.Context, input AccountEmail) error {
	return n.guard(ctx, func(ctx context.Context) error {
		return n.inner.SendPasswordReset(ctx, input)
	})
}

// State reports "closed", "open" or "half_open".
func (n *ProtectedNotifier) State() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return string(n.state)
}

func (n *ProtectedNotifier) guard(ctx context.Context, send func(context.Context) error) error {
	ok, from, to := n.admit()
	n.notify(from, to)
	if !ok {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	err := send(sendCtx)

	if err != nil && ctx.Err() != nil {
		n.release()
		return err
	}

	from, to = n.record(err)
	n.notify(from, to)

	return err
}

func (n *ProtectedNotifier) admit() (ok bool, from, to breakerState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	from = n.state

	switch n.state {
	case stateOpen:
		if n.now().Sub(n.openedAt) < n.cfg.Cooldown {
			return false, from, from
		}
		n.state = stateHalfOpen
		n.trials = 1
		return true, from, n.state

	case stateHalfOpen:
		if n.trials >= n.cfg.HalfOpenMaxCalls {
			return false, from, from
		}
		n.trials++
		return true, from, from

	default:
		return true, from, from
	}
}

// release frees a trial slot without judging the relay.
func (n *ProtectedNotifier) release() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == stateHalfOpen && n.trials > 0 {
		n.trials--
	}
}

func (n *ProtectedNotifier) record(err error) (from, to breakerState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	from = n.state
	if n.state == stateHalfOpen && n.trials > 0 {
		n.trials--
	}

	if err == nil {
		n.failures = 0
		n.state = stateClosed
		return from, n.state
	}

	n.failures++

	if n.state == stateHalfOpen || n.failures >= n.cfg.FailureThreshold {
		n.state = stateOpen
		n.openedAt = n.now()
	}

	return from, n.state
}

func (n *ProtectedNotifier) notify(from, to breakerState) {
	if from != to && n.cfg.OnStateChange != nil {
		n.cfg.OnStateChange(string(from), string(to))
	}
}
