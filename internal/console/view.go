package console

import (
	"time"

	"kiro-console/internal/credential"
)

// ResourceView is one credential row with everything a renderer needs.
type ResourceView struct {
	credential.Resource

	DisplayName  string               `json:"display_name"`
	TypeLabel    string               `json:"type_label"`
	Healthy      bool                 `json:"healthy"`
	OAuth        bool                 `json:"oauth"`
	SourceLabel  string               `json:"source_label"`
	SourceColor  string               `json:"source_color"`
	TokenTone    credential.TokenTone `json:"token_tone"`
	ErrorPreview string               `json:"error_preview,omitempty"`

	Deleting        bool `json:"deleting"`
	CheckingHealth  bool `json:"checking_health"`
	RefreshingToken bool `json:"refreshing_token"`
	QuickRefreshing bool `json:"quick_refreshing"`
	SwitchingLocal  bool `json:"switching_local"`

	// Health fields are set once the status panel has loaded.
	HealthScore  *float64                `json:"health_score,omitempty"`
	HealthBucket credential.HealthBucket `json:"health_bucket,omitempty"`

	Panels       []PanelView              `json:"panels"`
	SwitchResult *credential.SwitchResult `json:"switch_result,omitempty"`
}

// CollectionView is the full console state at one instant.
type CollectionView struct {
	Kind          string         `json:"kind"`
	Loading       bool           `json:"loading"`
	Error         string         `json:"error,omitempty"`
	LoadedAt      *time.Time     `json:"loaded_at,omitempty"`
	RefreshingAll bool           `json:"refreshing_all"`
	ValidatingAll bool           `json:"validating_all"`
	Credentials   []ResourceView `json:"credentials"`
}

// View assembles a render snapshot from every component.
func (c *Controller) View() CollectionView {
	out := CollectionView{
		Kind:          c.store.Kind(),
		Loading:       c.store.Loading(),
		RefreshingAll: c.batch.Running(BatchRefreshAll),
		ValidatingAll: c.batch.Running(BatchValidateAll),
	}
	if err := c.store.Err(); err != nil {
		out.Error = err.Error()
	}
	if at := c.store.LoadedAt(); !at.IsZero() {
		out.LoadedAt = &at
	}

	items := c.store.Snapshot()
	out.Credentials = make([]ResourceView, 0, len(items))
	for _, item := range items {
		out.Credentials = append(out.Credentials, c.resourceView(item))
	}
	return out
}

// ResourceView returns the row of one credential.
func (c *Controller) ResourceView(id string) (ResourceView, bool) {
	r, ok := c.store.Get(id)
	if !ok {
		return ResourceView{}, false
	}
	return c.resourceView(r), true
}

func (c *Controller) resourceView(r credential.Resource) ResourceView {
	flags := c.guard.Flags(r.UUID)
	view := ResourceView{
		Resource:        r,
		DisplayName:     r.DisplayName(),
		TypeLabel:       r.TypeLabel(),
		Healthy:         r.Healthy(),
		OAuth:           r.IsOAuth(),
		SourceLabel:     r.Source.Label(),
		SourceColor:     r.Source.Color(),
		TokenTone:       r.TokenTone(),
		ErrorPreview:    r.ErrorPreview(),
		Deleting:        flags[ActionDelete],
		CheckingHealth:  flags[ActionCheckHealth],
		RefreshingToken: flags[ActionRefreshToken],
		QuickRefreshing: flags[ActionQuickRefresh],
		SwitchingLocal:  flags[ActionSwitchLocal],
		Panels:          c.panels.Views(r.UUID),
		SwitchResult:    c.transient.For(r.UUID),
	}
	if status, ok := c.panels.LoadedStatus(r.UUID); ok {
		score := status.ClampedScore()
		view.HealthScore = &score
		view.HealthBucket = status.Bucket()
	}
	return view
}
