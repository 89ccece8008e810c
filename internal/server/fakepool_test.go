package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"kiro-console/internal/credential"
)

// fakePool is an in-memory provider-pool API.
type fakePool struct {
	mu       sync.Mutex
	items    []credential.Resource
	failOn   map[string]string
	gate     chan struct{}
	entered  chan string
	requests []string
}

func newFakePool(items ...credential.Resource) *fakePool {
	return &fakePool{items: items, failOn: map[string]string{}}
}

func (p *fakePool) fail(op, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOn[op] = message
}

// block makes refresh-token wait for release; entered receives the id.
func (p *fakePool) block() (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = make(chan struct{})
	p.entered = make(chan string, 4)
	gate := p.gate
	return func() { close(gate) }
}

func (p *fakePool) snapshot() []credential.Resource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]credential.Resource(nil), p.items...)
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (p *fakePool) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	p.mu.Lock()
	p.requests = append(p.requests, r.Method+" "+r.URL.Path)
	p.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/provider-pool/kiro/credentials":
		reply(w, http.StatusOK, p.snapshot())
	case r.Method == http.MethodDelete && len(parts) == 5 && parts[3] == "credentials":
		p.mutate(w, parts[4], "delete", func(i int) {
			p.items = append(p.items[:i], p.items[i+1:]...)
		})
	case len(parts) == 5 && parts[1] == "provider-pool":
		p.action(w, parts[3], parts[4])
	case len(parts) == 5 && parts[1] == "kiro":
		p.kiro(w, parts[3], parts[4])
	default:
		reply(w, http.StatusNotFound, map[string]string{"error": "no route"})
	}
}

func (p *fakePool) mutate(w http.ResponseWriter, id, op string, fn func(i int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg, ok := p.failOn[op]; ok {
		reply(w, http.StatusInternalServerError, map[string]string{"error": msg})
		return
	}
	for i := range p.items {
		if p.items[i].UUID == id {
			fn(i)
			reply(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	reply(w, http.StatusNotFound, map[string]any{"error": map[string]string{"message": "credential " + id + " not found"}})
}

func (p *fakePool) action(w http.ResponseWriter, id, op string) {
	switch op {
	case "toggle":
		p.mutate(w, id, op, func(i int) { p.items[i].IsDisabled = !p.items[i].IsDisabled })
	case "reset":
		p.mutate(w, id, op, func(i int) { p.items[i].ErrorCount = 0 })
	case "health-check":
		reply(w, http.StatusOK, credential.HealthCheckResult{UUID: id, Success: true, Message: "ok"})
	case "refresh-token":
		p.mu.Lock()
		gate, entered := p.gate, p.entered
		p.mu.Unlock()
		if gate != nil {
			entered <- id
			<-gate
		}
		p.mutate(w, id, op, func(int) {})
	default:
		reply(w, http.StatusNotFound, map[string]string{"error": "unknown action"})
	}
}

func (p *fakePool) kiro(w http.ResponseWriter, id, op string) {
	switch op {
	case "fingerprint":
		reply(w, http.StatusOK, credential.Fingerprint{MachineID: "machine-" + id, MachineIDShort: "m", Source: "generated"})
	case "usage":
		reply(w, http.StatusOK, credential.Usage{SubscriptionTitle: "Pro", UsageLimit: 100, CurrentUsage: 40})
	case "status":
		reply(w, http.StatusOK, credential.Status{HealthScore: 90})
	case "refresh":
		reply(w, http.StatusOK, credential.RefreshResult{Success: true, Message: "done"})
	case "switch-local":
		reply(w, http.StatusOK, credential.SwitchResult{Success: true, Message: "已切换", RequiresRestart: true})
	default:
		reply(w, http.StatusNotFound, map[string]string{"error": "unknown kiro op"})
	}
}
