package console

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"kiro-console/internal/credential"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedFetch struct {
	calls atomic.Int32
	gate  chan struct{}
	mu    sync.Mutex
	err   error
}

func newGatedFetch() *gatedFetch {
	return &gatedFetch{gate: make(chan struct{})}
}

func (g *gatedFetch) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *gatedFetch) fetch(context.Context) (*credential.Usage, error) {
	n := g.calls.Add(1)
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return &credential.Usage{UsageLimit: 100, CurrentUsage: float64(n)}, nil
}

func (g *gatedFetch) release() { g.gate <- struct{}{} }

func expandOK(t *testing.T, p *Panel[credential.Usage], g *gatedFetch) {
	t.Helper()
	require.Equal(t, PhaseLoading, p.Toggle())
	g.release()
	p.Wait()
	require.Equal(t, PhaseExpandedOK, p.Phase())
}

func TestPanelToggleWhileLoadingFetchesOnce(t *testing.T) {
	g := newGatedFetch()
	p := NewPanel(context.Background(), PanelUsage, g.fetch, nil)

	require.Equal(t, PhaseLoading, p.Toggle())
	require.Equal(t, PhaseLoading, p.Toggle())
	require.Equal(t, PhaseLoading, p.Close())

	g.release()
	p.Wait()

	assert.Equal(t, int32(1), g.calls.Load())
	assert.Equal(t, PhaseExpandedOK, p.Phase())
	data, errMsg := p.Data()
	require.NotNil(t, data)
	assert.Empty(t, errMsg)
}

func TestPanelServesCacheOnceThenRefetches(t *testing.T) {
	g := newGatedFetch()
	p := NewPanel(context.Background(), PanelUsage, g.fetch, nil)
	expandOK(t, p, g)

	require.Equal(t, PhaseCollapsed, p.Toggle())
	data, _ := p.Data()
	require.NotNil(t, data, "collapse keeps data")

	require.Equal(t, PhaseExpandedOK, p.Toggle(), "first re-expand uses the cache")
	assert.Equal(t, int32(1), g.calls.Load())

	require.Equal(t, PhaseCollapsed, p.Toggle())
	require.Equal(t, PhaseLoading, p.Toggle(), "second cycle refetches")
	g.release()
	p.Wait()
	assert.Equal(t, int32(2), g.calls.Load())

	data, _ = p.Data()
	assert.Equal(t, float64(2), data.CurrentUsage)
}

func TestPanelCloseForcesRefetch(t *testing.T) {
	g := newGatedFetch()
	p := NewPanel(context.Background(), PanelUsage, g.fetch, nil)
	expandOK(t, p, g)

	require.Equal(t, PhaseCollapsed, p.Close())
	require.Equal(t, PhaseCollapsed, p.Close(), "close on a collapsed panel is a no-op")
	require.Equal(t, PhaseLoading, p.Toggle())
	g.release()
	p.Wait()
	assert.Equal(t, int32(2), g.calls.Load())
}

func TestPanelErrorStateAndRetry(t *testing.T) {
	g := newGatedFetch()
	g.setErr(errors.New("upstream 500"))
	p := NewPanel(context.Background(), PanelUsage, g.fetch, nil)

	require.Equal(t, PhaseLoading, p.Toggle())
	g.release()
	p.Wait()
	require.Equal(t, PhaseExpandedError, p.Phase())
	assert.Equal(t, "upstream 500", p.View().Error)

	require.Equal(t, PhaseCollapsed, p.Toggle())
	g.setErr(nil)
	require.Equal(t, PhaseLoading, p.Toggle(), "errors are never cached")
	g.release()
	p.Wait()
	assert.Equal(t, PhaseExpandedOK, p.Phase())
	assert.Empty(t, p.View().Error)
}

func TestPanelErrorFallbackMessage(t *testing.T) {
	g := newGatedFetch()
	g.setErr(errors.New(""))
	p := NewPanel(context.Background(), PanelUsage, g.fetch, nil)

	p.Toggle()
	g.release()
	p.Wait()
	assert.Equal(t, "加载失败", p.View().Error)
}

func TestPanelDisposeDropsLateResponse(t *testing.T) {
	g := newGatedFetch()
	var changes atomic.Int32
	p := NewPanel(context.Background(), PanelUsage, g.fetch, func(PanelView) { changes.Add(1) })

	require.Equal(t, PhaseLoading, p.Toggle())
	require.Equal(t, int32(1), changes.Load())

	p.Dispose()
	g.release()
	p.Wait()

	assert.Equal(t, PhaseLoading, p.Phase())
	data, _ := p.Data()
	assert.Nil(t, data)
	assert.Equal(t, int32(1), changes.Load(), "no change after dispose")
	assert.Equal(t, PhaseLoading, p.Toggle(), "disposed panels ignore input")
}

func TestPanelSetPrunesRemovedCredentials(t *testing.T) {
	api := newStubAPI()
	api.usage = &credential.Usage{UsageLimit: 10}
	pub := &capturePublisher{}
	set := NewPanelSet(context.Background(), api, pub)

	view := set.Toggle("a", PanelUsage)
	assert.Equal(t, PhaseLoading, view.Phase)
	set.Wait()
	views := set.Views("a")
	require.Len(t, views, 3)
	assert.Equal(t, PhaseExpandedOK, views[1].Phase)
	assert.Equal(t, PhaseCollapsed, views[0].Phase)
	assert.Equal(t, 2, pub.count("panel.changed"))

	removed := set.Prune(map[string]struct{}{"b": {}})
	assert.Equal(t, 1, removed)
	for _, v := range set.Views("a") {
		assert.Equal(t, PhaseCollapsed, v.Phase)
	}
	assert.Equal(t, []string{"a"}, api.callsOf("usage"))
}
