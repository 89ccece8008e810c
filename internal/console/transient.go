package console

import (
	"sync"
	"time"

	"kiro-console/internal/credential"
)

// DefaultTransientTTL is how long a switch-to-local result stays visible.
const DefaultTransientTTL = 5 * time.Second

// ScheduleFunc runs fn after d and returns a stop function.
type ScheduleFunc func(d time.Duration, fn func()) (stop func() bool)

func afterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// TransientResult is the live switch-to-local outcome and its owner.
type TransientResult struct {
	CredentialID string                  `json:"credential_id"`
	Result       credential.SwitchResult `json:"result"`
	ExpiresAt    time.Time               `json:"expires_at"`
}

// TransientNotifier holds at most one self-expiring result. Every Set or
// Clear bumps a generation counter, so a timer armed for an older result can
// never clear a newer one.
type TransientNotifier struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	schedule ScheduleFunc

	current *TransientResult
	gen     uint64
	stop    func() bool
}

// NewTransientNotifier builds a notifier; ttl <= 0 selects DefaultTransientTTL.
func NewTransientNotifier(ttl time.Duration) *TransientNotifier {
	if ttl <= 0 {
		ttl = DefaultTransientTTL
	}
	return &TransientNotifier{
		ttl:      ttl,
		now:      time.Now,
		schedule: afterFunc,
	}
}

// SetTTL changes the countdown used by later Set calls.
func (n *TransientNotifier) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	n.mu.Lock()
	n.ttl = ttl
	n.mu.Unlock()
}

// Set replaces any live result and restarts the countdown.
func (n *TransientNotifier) Set(id string, result credential.SwitchResult) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked()
	n.gen++
	gen := n.gen
	n.current = &TransientResult{
		CredentialID: id,
		Result:       result,
		ExpiresAt:    n.now().Add(n.ttl),
	}
	n.stop = n.schedule(n.ttl, func() { n.expire(gen) })
}

// Clear drops the live result and cancels its countdown.
func (n *TransientNotifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.gen++
	n.current = nil
}

// Current returns the live result, if any. A result past its expiry is
// absent even when its timer has not fired yet.
func (n *TransientNotifier) Current() (TransientResult, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return TransientResult{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.stopLocked()
		n.gen++
		n.current = nil
		return TransientResult{}, false
	}
	return *n.current, true
}

// For returns the live result when it belongs to id.
func (n *TransientNotifier) For(id string) *credential.SwitchResult {
	cur, ok := n.Current()
	if !ok || cur.CredentialID != id {
		return nil
	}
	res := cur.Result
	return &res
}

// DropOwner clears the live result if it belongs to a credential not in keep.
func (n *TransientNotifier) DropOwner(keep map[string]struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return
	}
	if _, ok := keep[n.current.CredentialID]; ok {
		return
	}
	n.stopLocked()
	n.gen++
	n.current = nil
}

func (n *TransientNotifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return
	}
	n.current = nil
	n.stop = nil
}

func (n *TransientNotifier) stopLocked() {
	if n.stop != nil {
		n.stop()
		n.stop = nil
	}
}
