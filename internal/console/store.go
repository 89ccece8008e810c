package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kiro-console/internal/credential"
	"kiro-console/internal/events"

	log "github.com/sirupsen/logrus"
)

// CollectionStore holds the authoritative credential list. Load is its only writer.
type CollectionStore struct {
	api       ActionAPI
	kind      string
	publisher events.Publisher

	mu       sync.RWMutex
	items    []credential.Resource
	err      error
	loading  bool
	loadedAt time.Time

	// Serializes Load so replacements land in call order.
	loadMu sync.Mutex
	hooks  []func([]credential.Resource)
}

// NewCollectionStore builds a store listing credentials of the given provider kind.
func NewCollectionStore(api ActionAPI, kind string, publisher events.Publisher) *CollectionStore {
	return &CollectionStore{api: api, kind: kind, publisher: publisher}
}

// Kind returns the provider kind this store lists.
func (s *CollectionStore) Kind() string { return s.kind }

// OnReload registers a hook run after every successful load.
func (s *CollectionStore) OnReload(fn func([]credential.Resource)) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Load fetches the full list and replaces local state wholesale. On failure
// the list is emptied and the error kept until the next successful load.
func (s *CollectionStore) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	items, err := s.api.List(ctx, s.kind)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.items = nil
		s.err = fmt.Errorf("load %s credentials: %w", s.kind, err)
		loadErr := s.err
		s.mu.Unlock()
		log.WithError(err).WithField("kind", s.kind).Warn("credential list load failed")
		return loadErr
	}
	if items == nil {
		items = []credential.Resource{}
	}
	s.items = items
	s.err = nil
	s.loadedAt = time.Now()
	snapshot := cloneResources(items)
	s.mu.Unlock()

	log.WithFields(log.Fields{"kind": s.kind, "count": len(snapshot)}).Debug("credential list reloaded")
	for _, hook := range s.hooks {
		hook(snapshot)
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, events.TopicCollectionReloaded, map[string]int{"count": len(snapshot)}, map[string]string{"kind": s.kind})
	}
	return nil
}

// Snapshot returns an immutable copy of the current list.
func (s *CollectionStore) Snapshot() []credential.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneResources(s.items)
}

// Get looks up one credential by id.
func (s *CollectionStore) Get(id string) (credential.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.UUID == id {
			return item, true
		}
	}
	return credential.Resource{}, false
}

// Err returns the error of the last failed load, if it has not been superseded.
func (s *CollectionStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading reports whether a load is in flight.
func (s *CollectionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LoadedAt returns the time of the last successful load.
func (s *CollectionStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func cloneResources(in []credential.Resource) []credential.Resource {
	if in == nil {
		return nil
	}
	out := make([]credential.Resource, len(in))
	copy(out, in)
	return out
}
