package console

import "sync"

// ActionKind names a guarded per-credential action.
type ActionKind string

const (
	ActionDelete       ActionKind = "delete"
	ActionCheckHealth  ActionKind = "check-health"
	ActionRefreshToken ActionKind = "refresh-token"
	ActionQuickRefresh ActionKind = "quick-refresh"
	ActionSwitchLocal  ActionKind = "switch-local"
)

// GuardedActions lists every kind tracked by ActionGuard.
var GuardedActions = []ActionKind{
	ActionDelete,
	ActionCheckHealth,
	ActionRefreshToken,
	ActionQuickRefresh,
	ActionSwitchLocal,
}

type guardKey struct {
	kind ActionKind
	id   string
}

// ActionGuard tracks which (action, credential) pairs have a call in flight.
type ActionGuard struct {
	mu   sync.Mutex
	busy map[guardKey]struct{}
}

// NewActionGuard returns an empty guard.
func NewActionGuard() *ActionGuard {
	return &ActionGuard{busy: make(map[guardKey]struct{})}
}

// Acquire marks the pair busy and returns true, or returns false if it already was.
func (g *ActionGuard) Acquire(kind ActionKind, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := guardKey{kind: kind, id: id}
	if _, ok := g.busy[key]; ok {
		return false
	}
	g.busy[key] = struct{}{}
	return true
}

// Release unmarks the pair unconditionally.
func (g *ActionGuard) Release(kind ActionKind, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, guardKey{kind: kind, id: id})
}

// IsBusy reports whether the pair is in flight.
func (g *ActionGuard) IsBusy(kind ActionKind, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[guardKey{kind: kind, id: id}]
	return ok
}

// Flags returns the busy state of every guarded kind for one credential.
func (g *ActionGuard) Flags(id string) map[ActionKind]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[ActionKind]bool, len(GuardedActions))
	for _, kind := range GuardedActions {
		_, out[kind] = g.busy[guardKey{kind: kind, id: id}]
	}
	return out
}

// Run executes fn while holding the pair. The pair is released when fn
// returns, fails or panics. ErrBusy is returned without calling fn if the
// pair is already held.
func (g *ActionGuard) Run(kind ActionKind, id string, fn func() error) error {
	if !g.Acquire(kind, id) {
		return ErrBusy
	}
	defer g.Release(kind, id)
	return fn()
}
