package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kiro-console/internal/credential"
	"kiro-console/internal/events"
	"kiro-console/internal/monitoring"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// BatchKind names an apply-to-all workflow.
type BatchKind string

const (
	BatchRefreshAll  BatchKind = "refresh-all"
	BatchValidateAll BatchKind = "validate-all"
)

// ParseBatchKind validates a raw batch kind.
func ParseBatchKind(raw string) (BatchKind, bool) {
	switch BatchKind(raw) {
	case BatchRefreshAll, BatchValidateAll:
		return BatchKind(raw), true
	}
	return "", false
}

// BatchResult aggregates one batch run.
type BatchResult struct {
	Kind      BatchKind     `json:"kind"`
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	// Skipped counts items never called because the run was cancelled.
	Skipped   int           `json:"skipped,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// BatchProgress is published after every item.
type BatchProgress struct {
	Kind         BatchKind `json:"kind"`
	CredentialID string    `json:"credential_id"`
	Index        int       `json:"index"`
	Total        int       `json:"total"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

// BatchOrchestrator runs one action over a snapshot of the list, one item at
// a time. It bypasses ActionGuard and reports a single aggregate outcome.
type BatchOrchestrator struct {
	api       ActionAPI
	store     *CollectionStore
	notifier  Notifier
	publisher events.Publisher
	limiter   *rate.Limiter

	mu      sync.Mutex
	running map[BatchKind]bool
}

// NewBatchOrchestrator wires a batch runner. A nil limiter disables pacing.
func NewBatchOrchestrator(api ActionAPI, store *CollectionStore, notifier Notifier, publisher events.Publisher, limiter *rate.Limiter) *BatchOrchestrator {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &BatchOrchestrator{
		api:       api,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		limiter:   limiter,
		running:   make(map[BatchKind]bool),
	}
}

// SetPacing replaces the per-item rate limit; zero or negative disables pacing.
func (b *BatchOrchestrator) SetPacing(perSecond float64) {
	if perSecond <= 0 {
		b.limiter.SetLimit(rate.Inf)
		return
	}
	b.limiter.SetLimit(rate.Limit(perSecond))
}

// Running reports whether a batch of the given kind is in flight.
func (b *BatchOrchestrator) Running(kind BatchKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running[kind]
}

// Begin marks kind as running; it returns false when one already is.
func (b *BatchOrchestrator) Begin(kind BatchKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running[kind] {
		return false
	}
	b.running[kind] = true
	return true
}

func (b *BatchOrchestrator) end(kind BatchKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, kind)
}

// RunOverAll runs kind over the current list and blocks until it finishes.
func (b *BatchOrchestrator) RunOverAll(ctx context.Context, kind BatchKind) (BatchResult, error) {
	if !b.Begin(kind) {
		return BatchResult{Kind: kind}, ErrBatchRunning
	}
	return b.RunBegun(ctx, kind)
}

// RunBegun runs a batch whose slot was taken with Begin.
func (b *BatchOrchestrator) RunBegun(ctx context.Context, kind BatchKind) (BatchResult, error) {
	defer b.end(kind)

	step, err := b.stepFor(kind)
	if err != nil {
		return BatchResult{Kind: kind}, err
	}

	items := b.store.Snapshot()
	start := time.Now()
	res := BatchResult{Kind: kind}
	logger := log.WithFields(log.Fields{"batch": kind, "total": len(items)})
	logger.Info("batch started")

	for i, item := range items {
		if err := b.limiter.Wait(ctx); err != nil {
			res.Skipped = len(items) - i
			logger.WithError(err).WithField("skipped", res.Skipped).Warn("batch interrupted")
			break
		}
		res.Attempted++
		itemErr := step(ctx, item)
		progress := BatchProgress{
			Kind:         kind,
			CredentialID: item.UUID,
			Index:        i + 1,
			Total:        len(items),
			Success:      itemErr == nil,
		}
		if itemErr != nil {
			res.Failed++
			progress.Error = itemErr.Error()
			logger.WithError(itemErr).WithField("credential_id", item.UUID).Debug("batch item failed")
		} else {
			res.Succeeded++
		}
		b.publishProgress(ctx, progress)
	}
	res.Duration = time.Since(start)

	monitoring.BatchItemsTotal.WithLabelValues(string(kind), "success").Add(float64(res.Succeeded))
	monitoring.BatchItemsTotal.WithLabelValues(string(kind), "failure").Add(float64(res.Failed))
	logger.WithFields(log.Fields{
		"succeeded":   res.Succeeded,
		"failed":      res.Failed,
		"skipped":     res.Skipped,
		"duration_ms": res.Duration.Milliseconds(),
	}).Info("batch completed")

	b.report(res)
	if err := b.store.Load(ctx); err != nil {
		logger.WithError(err).Warn("reload after batch failed")
	}
	return res, nil
}

type batchStep func(ctx context.Context, item credential.Resource) error

var errInvalidCredential = errors.New("credential reported invalid")

func (b *BatchOrchestrator) stepFor(kind BatchKind) (batchStep, error) {
	switch kind {
	case BatchRefreshAll:
		return func(ctx context.Context, item credential.Resource) error {
			return b.api.RefreshToken(ctx, item.UUID)
		}, nil
	case BatchValidateAll:
		return func(ctx context.Context, item credential.Resource) error {
			result, err := b.api.CheckHealth(ctx, item.UUID)
			if err != nil {
				return err
			}
			if result == nil || !result.Success {
				return errInvalidCredential
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported batch kind %q", kind)
}

func (b *BatchOrchestrator) report(res BatchResult) {
	if res.Skipped > 0 {
		notify(b.notifier, SeverityWarning, "", fmt.Sprintf("批量操作已中断: %d 个成功, %d 个失败, %d 个未执行", res.Succeeded, res.Failed, res.Skipped))
		return
	}
	switch res.Kind {
	case BatchRefreshAll:
		switch {
		case res.Failed == 0:
			notify(b.notifier, SeveritySuccess, "", "所有凭证已刷新")
		case res.Succeeded == 0:
			notify(b.notifier, SeverityError, "", fmt.Sprintf("刷新完成: %d 个成功, %d 个失败", res.Succeeded, res.Failed))
		default:
			notify(b.notifier, SeverityWarning, "", fmt.Sprintf("刷新完成: %d 个成功, %d 个失败", res.Succeeded, res.Failed))
		}
	case BatchValidateAll:
		notify(b.notifier, SeverityInfo, "", fmt.Sprintf("验证完成: %d 个有效, %d 个无效", res.Succeeded, res.Failed))
	}
}

func (b *BatchOrchestrator) publishProgress(ctx context.Context, p BatchProgress) {
	if b.publisher == nil {
		return
	}
	b.publisher.Publish(ctx, events.TopicBatchProgress, p, map[string]string{
		"batch":         string(p.Kind),
		"credential_id": p.CredentialID,
	})
}
