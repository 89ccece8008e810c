// Package console holds the action and panel orchestration behind the
// credential console: busy guards, detail panels, the switch-to-local result,
// batch runs and the authoritative credential list.
package console

import (
	"context"
	"errors"

	"kiro-console/internal/credential"
)

// ActionAPI is the remote credential-management API the console drives.
type ActionAPI interface {
	List(ctx context.Context, kind string) ([]credential.Resource, error)
	Delete(ctx context.Context, id, kind string) error
	// SetDisabled writes the disabled flag; the console always passes the
	// opposite of the credential's current flag.
	SetDisabled(ctx context.Context, id string, disabled bool) (*credential.Resource, error)
	Reset(ctx context.Context, id string) error
	CheckHealth(ctx context.Context, id string) (*credential.HealthCheckResult, error)
	RefreshToken(ctx context.Context, id string) error
	Update(ctx context.Context, id string, patch credential.UpdatePatch) (*credential.Resource, error)
	FetchFingerprint(ctx context.Context, id string) (*credential.Fingerprint, error)
	FetchUsage(ctx context.Context, id string) (*credential.Usage, error)
	FetchStatus(ctx context.Context, id string) (*credential.Status, error)
	QuickRefresh(ctx context.Context, id string) (*credential.RefreshResult, error)
	SwitchToLocal(ctx context.Context, id string) (*credential.SwitchResult, error)
}

var (
	// ErrBusy is returned when the same action is already running for a credential.
	ErrBusy = errors.New("action already in progress")
	// ErrDeclined is returned when the operator did not confirm a destructive action.
	ErrDeclined = errors.New("action not confirmed")
	// ErrNotFound is returned for ids missing from the current list.
	ErrNotFound = errors.New("credential not found")
	// ErrBatchRunning is returned when a batch of the same kind is still in flight.
	ErrBatchRunning = errors.New("batch already running")
)

// errorMessage picks the error text, or fallback when the error carries none.
func errorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
