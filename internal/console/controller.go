package console

import (
	"context"
	"fmt"
	"time"

	"kiro-console/internal/credential"
	"kiro-console/internal/events"
	"kiro-console/internal/logging"
	"kiro-console/internal/monitoring"

	log "github.com/sirupsen/logrus"
)

// Options configure a Controller.
type Options struct {
	// ProviderKind is the provider pool the console manages, e.g. "kiro".
	ProviderKind string
	// TransientTTL is the lifetime of a switch-to-local result.
	TransientTTL time.Duration
	// BatchPacing caps batch calls per second; 0 means unpaced.
	BatchPacing float64
}

// Controller is the per-credential action surface. Every action catches its
// own remote error, emits one notification and reloads the list on both paths.
type Controller struct {
	api       ActionAPI
	notifier  Notifier
	store     *CollectionStore
	guard     *ActionGuard
	panels    *PanelSet
	transient *TransientNotifier
	batch     *BatchOrchestrator
}

// NewController wires the orchestration components around api.
func NewController(ctx context.Context, api ActionAPI, notifier Notifier, publisher events.Publisher, opts Options) *Controller {
	kind := opts.ProviderKind
	if kind == "" {
		kind = "kiro"
	}
	store := NewCollectionStore(api, kind, publisher)
	c := &Controller{
		api:       api,
		notifier:  notifier,
		store:     store,
		guard:     NewActionGuard(),
		panels:    NewPanelSet(ctx, api, publisher),
		transient: NewTransientNotifier(opts.TransientTTL),
	}
	c.batch = NewBatchOrchestrator(api, store, notifier, publisher, nil)
	c.batch.SetPacing(opts.BatchPacing)
	store.OnReload(c.prune)
	return c
}

// Store returns the collection store.
func (c *Controller) Store() *CollectionStore { return c.store }

// Guard returns the action guard.
func (c *Controller) Guard() *ActionGuard { return c.guard }

// Panels returns the panel set.
func (c *Controller) Panels() *PanelSet { return c.panels }

// Transient returns the switch-to-local result holder.
func (c *Controller) Transient() *TransientNotifier { return c.transient }

// Batch returns the batch orchestrator.
func (c *Controller) Batch() *BatchOrchestrator { return c.batch }

// Load refreshes the credential list.
func (c *Controller) Load(ctx context.Context) error {
	return c.store.Load(ctx)
}

// Delete removes a credential after the operator confirmed it.
func (c *Controller) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrDeclined
	}
	return c.guarded(ctx, ActionDelete, id, func() error {
		if err := c.api.Delete(ctx, id, c.store.Kind()); err != nil {
			notify(c.notifier, SeverityError, id, errorMessage(err, "删除失败"))
			return err
		}
		notify(c.notifier, SeveritySuccess, id, "凭证已删除")
		return nil
	})
}

// Toggle flips the disabled flag of a credential.
func (c *Controller) Toggle(ctx context.Context, id string) error {
	current, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.unguarded(ctx, "toggle", id, func() error {
		if _, err := c.api.SetDisabled(ctx, id, !current.IsDisabled); err != nil {
			notify(c.notifier, SeverityError, id, errorMessage(err, "操作失败"))
			return err
		}
		if current.IsDisabled {
			notify(c.notifier, SeveritySuccess, id, "凭证已启用")
		} else {
			notify(c.notifier, SeveritySuccess, id, "凭证已禁用")
		}
		return nil
	})
}

// Reset clears a credential's counters upstream.
func (c *Controller) Reset(ctx context.Context, id string) error {
	return c.unguarded(ctx, "reset", id, func() error {
		if err := c.api.Reset(ctx, id); err != nil {
			notify(c.notifier, SeverityError, id, errorMessage(err, "重置失败"))
			return err
		}
		notify(c.notifier, SeveritySuccess, id, "凭证已重置")
		return nil
	})
}

// CheckHealth validates a credential against the upstream.
func (c *Controller) CheckHealth(ctx context.Context, id string) (*credential.HealthCheckResult, error) {
	var result *credential.HealthCheckResult
	err := c.guarded(ctx, ActionCheckHealth, id, func() error {
		res, err := c.api.CheckHealth(ctx, id)
		if err != nil {
			notify(c.notifier, SeverityError, id, errorMessage(err, "验证失败"))
			return err
		}
		result = res
		if res != nil && res.Success {
			notify(c.notifier, SeveritySuccess, id, "凭证验证通过")
			return nil
		}
		msg := "凭证验证失败"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		notify(c.notifier, SeverityError, id, msg)
		return nil
	})
	return result, err
}

// RefreshToken refreshes the OAuth token of a credential.
func (c *Controller) RefreshToken(ctx context.Context, id string) error {
	return c.guarded(ctx, ActionRefreshToken, id, func() error {
		if err := c.api.RefreshToken(ctx, id); err != nil {
			notify(c.notifier, SeverityError, id, errorMessage(err, "刷新失败"))
			return err
		}
		notify(c.notifier, SeveritySuccess, id, "Token 刷新成功")
		return nil
	})
}

// Update applies an edit. Failures are returned to the form rather than notified.
func (c *Controller) Update(ctx context.Context, id string, patch credential.UpdatePatch) error {
	if _, err := c.api.Update(ctx, id, patch); err != nil {
		monitoring.ActionsTotal.WithLabelValues("update", "error").Inc()
		return fmt.Errorf("编辑失败: %w", err)
	}
	monitoring.ActionsTotal.WithLabelValues("update", "ok").Inc()
	notify(c.notifier, SeveritySuccess, id, "凭证已更新")
	c.reload(ctx)
	return nil
}

// QuickRefresh asks the Kiro backend to refresh a credential immediately.
func (c *Controller) QuickRefresh(ctx context.Context, id string) (*credential.RefreshResult, error) {
	var result *credential.RefreshResult
	err := c.guarded(ctx, ActionQuickRefresh, id, func() error {
		res, err := c.api.QuickRefresh(ctx, id)
		if err != nil {
			notify(c.notifier, SeverityError, id, errorMessage(err, "刷新失败"))
			return err
		}
		result = res
		if res != nil && res.Success {
			notify(c.notifier, SeveritySuccess, id, "Token 刷新成功")
			return nil
		}
		msg := "刷新失败"
		if res != nil {
			switch {
			case res.Error != "":
				msg = res.Error
			case res.Message != "":
				msg = res.Message
			}
		}
		notify(c.notifier, SeverityError, id, msg)
		return nil
	})
	return result, err
}

// SwitchToLocal makes a credential the one used by the local Kiro IDE. The
// outcome is held by the transient notifier rather than sent as a notification.
func (c *Controller) SwitchToLocal(ctx context.Context, id string) (credential.SwitchResult, error) {
	var result credential.SwitchResult
	err := c.guard.Run(ActionSwitchLocal, id, func() error {
		c.transient.Clear()
		res, err := c.api.SwitchToLocal(ctx, id)
		if err != nil {
			result = credential.SwitchResult{Message: errorMessage(err, "切换失败")}
			c.transient.Set(id, result)
			monitoring.ActionsTotal.WithLabelValues(string(ActionSwitchLocal), "error").Inc()
			logging.WithAction(string(ActionSwitchLocal), id).WithError(err).Warn("switch to local failed")
			return err
		}
		if res != nil {
			result = *res
		}
		c.transient.Set(id, result)
		if result.Success {
			monitoring.ActionsTotal.WithLabelValues(string(ActionSwitchLocal), "ok").Inc()
			c.reload(ctx)
		} else {
			monitoring.ActionsTotal.WithLabelValues(string(ActionSwitchLocal), "rejected").Inc()
		}
		return nil
	})
	return result, err
}

// TogglePanel toggles one detail panel of a credential.
func (c *Controller) TogglePanel(id string, kind PanelKind) PanelView {
	return c.panels.Toggle(id, kind)
}

// ClosePanel dismisses one detail panel of a credential.
func (c *Controller) ClosePanel(id string, kind PanelKind) PanelView {
	return c.panels.Close(id, kind)
}

// RunBatch runs an apply-to-all workflow and blocks until it completes.
func (c *Controller) RunBatch(ctx context.Context, kind BatchKind) (BatchResult, error) {
	return c.batch.RunOverAll(ctx, kind)
}

// StartBatch claims the slot for kind and hands the run to spawn, so the
// caller can answer before the batch finishes.
func (c *Controller) StartBatch(ctx context.Context, kind BatchKind, spawn func(fn func())) error {
	if !c.batch.Begin(kind) {
		return ErrBatchRunning
	}
	spawn(func() {
		_, _ = c.batch.RunBegun(ctx, kind)
	})
	return nil
}

func (c *Controller) guarded(ctx context.Context, kind ActionKind, id string, fn func() error) error {
	err := c.guard.Run(kind, id, func() error {
		defer c.reload(ctx)
		return fn()
	})
	c.record(string(kind), id, err)
	return err
}

func (c *Controller) unguarded(ctx context.Context, action, id string, fn func() error) error {
	err := func() error {
		defer c.reload(ctx)
		return fn()
	}()
	c.record(action, id, err)
	return err
}

func (c *Controller) record(action, id string, err error) {
	status := "ok"
	switch {
	case err == ErrBusy:
		status = "busy"
	case err != nil:
		status = "error"
	}
	monitoring.ActionsTotal.WithLabelValues(action, status).Inc()
	if err != nil && err != ErrBusy {
		logging.WithAction(action, id).WithError(err).WithField("cause", logging.CauseKind(err)).Warn("credential action failed")
	}
}

func (c *Controller) reload(ctx context.Context) {
	if err := c.store.Load(ctx); err != nil {
		log.WithError(err).Debug("reload after action failed")
	}
}

// prune drops panel and transient state for credentials that disappeared.
func (c *Controller) prune(items []credential.Resource) {
	keep := make(map[string]struct{}, len(items))
	for _, item := range items {
		keep[item.UUID] = struct{}{}
	}
	if n := c.panels.Prune(keep); n > 0 {
		log.WithField("count", n).Debug("disposed panels of removed credentials")
	}
	c.transient.DropOwner(keep)
}
