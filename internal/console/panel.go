package console

import (
	"context"
	"sync"
)

// PanelKind names one of the per-credential detail panels.
type PanelKind string

const (
	PanelFingerprint PanelKind = "fingerprint"
	PanelUsage       PanelKind = "usage"
	PanelStatus      PanelKind = "status"
)

// PanelKinds lists every panel kind in display order.
var PanelKinds = []PanelKind{PanelFingerprint, PanelUsage, PanelStatus}

// ParsePanelKind validates a raw panel kind.
func ParsePanelKind(raw string) (PanelKind, bool) {
	for _, kind := range PanelKinds {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

// PanelPhase is the state of a panel's state machine.
type PanelPhase string

const (
	PhaseCollapsed     PanelPhase = "collapsed"
	PhaseLoading       PanelPhase = "loading"
	PhaseExpandedOK    PanelPhase = "expanded-ok"
	PhaseExpandedError PanelPhase = "expanded-error"
)

// Expanded reports whether the panel body is visible.
func (p PanelPhase) Expanded() bool {
	return p == PhaseExpandedOK || p == PhaseExpandedError
}

// PanelView is the kind-erased snapshot handed to renderers.
type PanelView struct {
	Kind  PanelKind  `json:"kind"`
	Phase PanelPhase `json:"phase"`
	Data  any        `json:"data,omitempty"`
	Error string     `json:"error,omitempty"`
}

// FetchFunc loads a panel's payload.
type FetchFunc[T any] func(ctx context.Context) (*T, error)

// Panel is a fetch-on-demand detail view with collapse and cache behaviour:
//
//	collapsed --toggle--> loading --ok--> expanded-ok
//	                              --err-> expanded-error
//	expanded-* --toggle/close--> collapsed (data kept)
//	loading --toggle/close--> loading (ignored)
//
// A toggle from collapsed reuses the cached payload only for the first
// re-expand after a successful fetch; Close, an error, or a second cycle
// forces a refetch. Responses that arrive after Dispose, or that belong to a
// superseded request, are dropped.
type Panel[T any] struct {
	kind     PanelKind
	ctx      context.Context
	fetch    FetchFunc[T]
	onChange func(PanelView)

	mu       sync.Mutex
	phase    PanelPhase
	data     *T
	errMsg   string
	fresh    bool
	seq      uint64
	disposed bool
	inflight sync.WaitGroup
}

// NewPanel builds a collapsed panel. onChange may be nil.
func NewPanel[T any](ctx context.Context, kind PanelKind, fetch FetchFunc[T], onChange func(PanelView)) *Panel[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Panel[T]{
		kind:     kind,
		ctx:      ctx,
		fetch:    fetch,
		onChange: onChange,
		phase:    PhaseCollapsed,
	}
}

// Kind returns the panel kind.
func (p *Panel[T]) Kind() PanelKind { return p.kind }

// Toggle advances the state machine and returns the resulting phase.
func (p *Panel[T]) Toggle() PanelPhase {
	p.mu.Lock()
	if p.disposed {
		phase := p.phase
		p.mu.Unlock()
		return phase
	}

	switch p.phase {
	case PhaseLoading:
		p.mu.Unlock()
		return PhaseLoading
	case PhaseExpandedOK, PhaseExpandedError:
		p.phase = PhaseCollapsed
		view := p.viewLocked()
		p.mu.Unlock()
		p.notify(view)
		return PhaseCollapsed
	}

	if p.fresh && p.data != nil {
		p.fresh = false
		p.phase = PhaseExpandedOK
		view := p.viewLocked()
		p.mu.Unlock()
		p.notify(view)
		return PhaseExpandedOK
	}

	p.phase = PhaseLoading
	p.fresh = false
	p.seq++
	seq := p.seq
	p.inflight.Add(1)
	view := p.viewLocked()
	p.mu.Unlock()

	p.notify(view)
	go p.run(seq)
	return PhaseLoading
}

// Close collapses an expanded panel and marks its cache stale.
func (p *Panel[T]) Close() PanelPhase {
	p.mu.Lock()
	if p.disposed || !p.phase.Expanded() {
		phase := p.phase
		p.mu.Unlock()
		return phase
	}
	p.phase = PhaseCollapsed
	p.fresh = false
	view := p.viewLocked()
	p.mu.Unlock()
	p.notify(view)
	return PhaseCollapsed
}

// Phase returns the current phase.
func (p *Panel[T]) Phase() PanelPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// Data returns the last fetched payload and error text, if any.
func (p *Panel[T]) Data() (*T, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.errMsg
}

// View returns a renderer snapshot.
func (p *Panel[T]) View() PanelView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// Dispose detaches the panel; any in-flight response is discarded.
func (p *Panel[T]) Dispose() {
	p.mu.Lock()
	p.disposed = true
	p.seq++
	p.mu.Unlock()
}

// Wait blocks until every dispatched fetch has settled.
func (p *Panel[T]) Wait() {
	p.inflight.Wait()
}

func (p *Panel[T]) run(seq uint64) {
	defer p.inflight.Done()

	data, err := p.fetch(p.ctx)

	p.mu.Lock()
	if p.disposed || seq != p.seq || p.phase != PhaseLoading {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.phase = PhaseExpandedError
		p.errMsg = errorMessage(err, "加载失败")
	} else {
		p.phase = PhaseExpandedOK
		p.data = data
		p.errMsg = ""
		p.fresh = true
	}
	view := p.viewLocked()
	p.mu.Unlock()
	p.notify(view)
}

// presenter is implemented by payloads that carry derived display fields.
type presenter interface {
	Present() any
}

func (p *Panel[T]) viewLocked() PanelView {
	view := PanelView{Kind: p.kind, Phase: p.phase}
	if p.data != nil {
		if pr, ok := any(p.data).(presenter); ok {
			view.Data = pr.Present()
		} else {
			view.Data = p.data
		}
	}
	if p.phase == PhaseExpandedError {
		view.Error = p.errMsg
	}
	return view
}

func (p *Panel[T]) notify(view PanelView) {
	if p.onChange != nil {
		p.onChange(view)
	}
}
