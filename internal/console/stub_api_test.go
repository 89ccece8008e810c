package console

import (
	"context"
	"fmt"
	"sync"

	"kiro-console/internal/credential"
	"kiro-console/internal/events"
)

// stubAPI records every call and serves canned results. Hooks run before a
// method returns and may block or override its error.
type stubAPI struct {
	mu      sync.Mutex
	calls   []string
	items   []credential.Resource
	listErr error
	errs    map[string]error
	health  map[string]*credential.HealthCheckResult
	hooks   map[string]func(id string) error

	fingerprint *credential.Fingerprint
	usage       *credential.Usage
	status      *credential.Status
	refresh     *credential.RefreshResult
	switched    *credential.SwitchResult
}

func newStubAPI(items ...credential.Resource) *stubAPI {
	return &stubAPI{
		items:  items,
		errs:   make(map[string]error),
		health: make(map[string]*credential.HealthCheckResult),
		hooks:  make(map[string]func(string) error),
	}
}

func (s *stubAPI) record(method, id string) error {
	s.mu.Lock()
	s.calls = append(s.calls, method+":"+id)
	err := s.errs[method]
	hook := s.hooks[method]
	s.mu.Unlock()
	if hook != nil {
		if hookErr := hook(id); hookErr != nil {
			return hookErr
		}
	}
	return err
}

func (s *stubAPI) setErr(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[method] = err
}

func (s *stubAPI) setHook(method string, fn func(id string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[method] = fn
}

func (s *stubAPI) setItems(items ...credential.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

func (s *stubAPI) callsOf(method string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	prefix := method + ":"
	for _, c := range s.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c[len(prefix):])
		}
	}
	return out
}

func (s *stubAPI) allCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubAPI) List(_ context.Context, kind string) ([]credential.Resource, error) {
	if err := s.record("list", kind); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]credential.Resource(nil), s.items...), nil
}

func (s *stubAPI) Delete(_ context.Context, id, _ string) error {
	return s.record("delete", id)
}

func (s *stubAPI) SetDisabled(_ context.Context, id string, disabled bool) (*credential.Resource, error) {
	if err := s.record("set-disabled", fmt.Sprintf("%s=%t", id, disabled)); err != nil {
		return nil, err
	}
	return &credential.Resource{UUID: id, IsDisabled: disabled}, nil
}

func (s *stubAPI) Reset(_ context.Context, id string) error {
	return s.record("reset", id)
}

func (s *stubAPI) CheckHealth(_ context.Context, id string) (*credential.HealthCheckResult, error) {
	if err := s.record("check-health", id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.health[id]; ok {
		return res, nil
	}
	return &credential.HealthCheckResult{UUID: id, Success: true}, nil
}

func (s *stubAPI) RefreshToken(_ context.Context, id string) error {
	return s.record("refresh-token", id)
}

func (s *stubAPI) Update(_ context.Context, id string, _ credential.UpdatePatch) (*credential.Resource, error) {
	if err := s.record("update", id); err != nil {
		return nil, err
	}
	return &credential.Resource{UUID: id}, nil
}

func (s *stubAPI) FetchFingerprint(_ context.Context, id string) (*credential.Fingerprint, error) {
	if err := s.record("fingerprint", id); err != nil {
		return nil, err
	}
	return s.fingerprint, nil
}

func (s *stubAPI) FetchUsage(_ context.Context, id string) (*credential.Usage, error) {
	if err := s.record("usage", id); err != nil {
		return nil, err
	}
	return s.usage, nil
}

func (s *stubAPI) FetchStatus(_ context.Context, id string) (*credential.Status, error) {
	if err := s.record("status", id); err != nil {
		return nil, err
	}
	return s.status, nil
}

func (s *stubAPI) QuickRefresh(_ context.Context, id string) (*credential.RefreshResult, error) {
	if err := s.record("quick-refresh", id); err != nil {
		return nil, err
	}
	return s.refresh, nil
}

func (s *stubAPI) SwitchToLocal(_ context.Context, id string) (*credential.SwitchResult, error) {
	if err := s.record("switch-local", id); err != nil {
		return nil, err
	}
	return s.switched, nil
}

// recordingNotifier collects notifications in order.
type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.got...)
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		return Notification{}
	}
	return r.got[len(r.got)-1]
}

// capturePublisher records published topics.
type capturePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (c *capturePublisher) Publish(_ context.Context, topic string, _ any, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
}

func (c *capturePublisher) count(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.topics {
		if t == topic {
			n++
		}
	}
	return n
}

var _ events.Publisher = (*capturePublisher)(nil)
