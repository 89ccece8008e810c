package console

import (
	"context"
	"sync"

	"kiro-console/internal/credential"
	"kiro-console/internal/events"
	"kiro-console/internal/monitoring"
)

// panelControl is the kind-erased surface of Panel[T].
type panelControl interface {
	Kind() PanelKind
	Toggle() PanelPhase
	Close() PanelPhase
	Phase() PanelPhase
	View() PanelView
	Dispose()
	Wait()
}

// ResourcePanels groups the three panels of one credential.
type ResourcePanels struct {
	Fingerprint *Panel[credential.Fingerprint]
	Usage       *Panel[credential.Usage]
	Status      *Panel[credential.Status]
}

func (rp *ResourcePanels) get(kind PanelKind) panelControl {
	switch kind {
	case PanelFingerprint:
		return rp.Fingerprint
	case PanelUsage:
		return rp.Usage
	case PanelStatus:
		return rp.Status
	}
	return nil
}

func (rp *ResourcePanels) all() []panelControl {
	return []panelControl{rp.Fingerprint, rp.Usage, rp.Status}
}

// PanelSet owns the panels of every credential, created lazily on first use.
type PanelSet struct {
	ctx       context.Context
	api       ActionAPI
	publisher events.Publisher

	mu     sync.Mutex
	panels map[string]*ResourcePanels
}

// NewPanelSet builds an empty set whose fetches go through api.
func NewPanelSet(ctx context.Context, api ActionAPI, publisher events.Publisher) *PanelSet {
	if ctx == nil {
		ctx = context.Background()
	}
	return &PanelSet{
		ctx:       ctx,
		api:       api,
		publisher: publisher,
		panels:    make(map[string]*ResourcePanels),
	}
}

// For returns the panels of one credential, creating them if needed.
func (s *PanelSet) For(id string) *ResourcePanels {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rp, ok := s.panels[id]; ok {
		return rp
	}
	rp := &ResourcePanels{
		Fingerprint: NewPanel(s.ctx, PanelFingerprint, instrumentFetch[credential.Fingerprint](PanelFingerprint, func(ctx context.Context) (*credential.Fingerprint, error) {
			return s.api.FetchFingerprint(ctx, id)
		}), s.onChange(id)),
		Usage: NewPanel(s.ctx, PanelUsage, instrumentFetch[credential.Usage](PanelUsage, func(ctx context.Context) (*credential.Usage, error) {
			return s.api.FetchUsage(ctx, id)
		}), s.onChange(id)),
		Status: NewPanel(s.ctx, PanelStatus, instrumentFetch[credential.Status](PanelStatus, func(ctx context.Context) (*credential.Status, error) {
			return s.api.FetchStatus(ctx, id)
		}), s.onChange(id)),
	}
	s.panels[id] = rp
	return rp
}

// Toggle toggles one panel of one credential.
func (s *PanelSet) Toggle(id string, kind PanelKind) PanelView {
	p := s.For(id).get(kind)
	p.Toggle()
	return p.View()
}

// Close closes one panel of one credential.
func (s *PanelSet) Close(id string, kind PanelKind) PanelView {
	p := s.For(id).get(kind)
	p.Close()
	return p.View()
}

// Views returns snapshots of all panels of one credential without creating them.
func (s *PanelSet) Views(id string) []PanelView {
	s.mu.Lock()
	rp, ok := s.panels[id]
	s.mu.Unlock()

	out := make([]PanelView, 0, len(PanelKinds))
	if !ok {
		for _, kind := range PanelKinds {
			out = append(out, PanelView{Kind: kind, Phase: PhaseCollapsed})
		}
		return out
	}
	for _, p := range rp.all() {
		out = append(out, p.View())
	}
	return out
}

// LoadedStatus returns the last status fetched for id without creating panels.
func (s *PanelSet) LoadedStatus(id string) (*credential.Status, bool) {
	s.mu.Lock()
	rp, ok := s.panels[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	data, _ := rp.Status.Data()
	return data, data != nil
}

// Prune disposes the panels of credentials not in keep.
func (s *PanelSet) Prune(keep map[string]struct{}) int {
	s.mu.Lock()
	var removed []*ResourcePanels
	for id, rp := range s.panels {
		if _, ok := keep[id]; ok {
			continue
		}
		removed = append(removed, rp)
		delete(s.panels, id)
	}
	s.mu.Unlock()

	for _, rp := range removed {
		for _, p := range rp.all() {
			p.Dispose()
		}
	}
	return len(removed)
}

// Wait blocks until all dispatched fetches have settled.
func (s *PanelSet) Wait() {
	s.mu.Lock()
	all := make([]*ResourcePanels, 0, len(s.panels))
	for _, rp := range s.panels {
		all = append(all, rp)
	}
	s.mu.Unlock()
	for _, rp := range all {
		for _, p := range rp.all() {
			p.Wait()
		}
	}
}

func (s *PanelSet) onChange(id string) func(PanelView) {
	return func(view PanelView) {
		if s.publisher == nil {
			return
		}
		s.publisher.Publish(s.ctx, events.TopicPanelChanged, view, map[string]string{
			"credential_id": id,
			"panel":         string(view.Kind),
		})
	}
}

func instrumentFetch[T any](kind PanelKind, fetch FetchFunc[T]) FetchFunc[T] {
	return func(ctx context.Context) (*T, error) {
		data, err := fetch(ctx)
		status := "ok"
		if err != nil {
			status = "error"
		}
		monitoring.PanelFetchesTotal.WithLabelValues(string(kind), status).Inc()
		return data, err
	}
}
