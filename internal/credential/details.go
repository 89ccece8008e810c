package credential

import (
	"fmt"
	"math"
)

// Fingerprint is the device fingerprint bound to a Kiro credential.
type Fingerprint struct {
	MachineID      string `json:"machine_id"`
	MachineIDShort string `json:"machine_id_short"`
	Source         string `json:"source"`
	AuthMethod     string `json:"auth_method"`
}

// Usage is the subscription quota of a Kiro credential.
type Usage struct {
	SubscriptionTitle string  `json:"subscriptionTitle"`
	UsageLimit        float64 `json:"usageLimit"`
	CurrentUsage      float64 `json:"currentUsage"`
	Balance           float64 `json:"balance"`
	IsLowBalance      bool    `json:"isLowBalance"`
}

// Percent is the rounded share of the limit already used; 0 when there is no limit.
func (u Usage) Percent() int {
	if u.UsageLimit <= 0 {
		return 0
	}
	return int(math.Round(u.CurrentUsage / u.UsageLimit * 100))
}

// Remaining is the complement of Percent.
func (u Usage) Remaining() int {
	return 100 - u.Percent()
}

// Title falls back to a generic heading.
func (u Usage) Title() string {
	if u.SubscriptionTitle == "" {
		return "用量信息"
	}
	return u.SubscriptionTitle
}

// FormatNumber renders quota numbers with K/M suffixes and one decimal.
func FormatNumber(n float64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", n/1_000)
	}
	return fmt.Sprintf("%.1f", n)
}

// UsageView is the usage payload with the values the usage panel renders.
type UsageView struct {
	Usage
	Title          string `json:"title"`
	Percent        int    `json:"percent"`
	Remaining      int    `json:"remaining"`
	LimitDisplay   string `json:"limit_display"`
	CurrentDisplay string `json:"current_display"`
}

// Present returns the usage with its derived fields.
func (u Usage) Present() any {
	return UsageView{
		Usage:          u,
		Title:          u.Title(),
		Percent:        u.Percent(),
		Remaining:      u.Remaining(),
		LimitDisplay:   FormatNumber(u.UsageLimit),
		CurrentDisplay: FormatNumber(u.CurrentUsage),
	}
}

// Status is the detailed status of a Kiro credential.
type Status struct {
	HealthScore     float64 `json:"health_score"`
	IsDisabled      bool    `json:"is_disabled"`
	CooldownSeconds *int64  `json:"cooldown_seconds,omitempty"`
}

// HealthBucket is the severity class selected by a health score.
type HealthBucket string

const (
	HealthGood     HealthBucket = "good"
	HealthFair     HealthBucket = "fair"
	HealthPoor     HealthBucket = "poor"
	HealthCritical HealthBucket = "critical"
)

// Thresholds are inclusive lower bounds.
const (
	HealthGoodThreshold = 80
	HealthFairThreshold = 60
	HealthPoorThreshold = 40
)

// Bucket maps a 0-100 score onto its severity class.
func Bucket(score float64) HealthBucket {
	switch {
	case score >= HealthGoodThreshold:
		return HealthGood
	case score >= HealthFairThreshold:
		return HealthFair
	case score >= HealthPoorThreshold:
		return HealthPoor
	default:
		return HealthCritical
	}
}

// Bucket returns the severity class of the status score.
func (s Status) Bucket() HealthBucket {
	return Bucket(s.HealthScore)
}

// ClampedScore limits the score to the 0-100 bar range.
func (s Status) ClampedScore() float64 {
	return math.Max(0, math.Min(100, s.HealthScore))
}

// Summary describes the status the way the status panel does.
func (s Status) Summary(disabled bool) string {
	if disabled {
		return "凭证已被自动禁用，需手动重新启用"
	}
	switch s.Bucket() {
	case HealthGood:
		return "凭证状态良好，可正常使用"
	case HealthFair:
		return "凭证状态一般，建议注意监控"
	case HealthPoor:
		return "凭证状态较差，可能有风险"
	default:
		return "凭证状态异常，需要立即处理"
	}
}

// StatusView is the status payload with the values the status panel renders.
type StatusView struct {
	Status
	Score                 float64      `json:"score"`
	Bucket                HealthBucket `json:"bucket"`
	Summary               string       `json:"summary"`
	RecommendQuickRefresh bool         `json:"recommend_quick_refresh"`
}

// Present returns the status with its derived fields.
func (s Status) Present() any {
	return StatusView{
		Status:                s,
		Score:                 s.ClampedScore(),
		Bucket:                s.Bucket(),
		Summary:               s.Summary(s.IsDisabled),
		RecommendQuickRefresh: RecommendQuickRefresh(s.HealthScore),
	}
}

// RecommendQuickRefresh is true for poor and critical scores.
func RecommendQuickRefresh(score float64) bool {
	b := Bucket(score)
	return b == HealthPoor || b == HealthCritical
}

// HealthCheckResult is the outcome of a single credential validation.
type HealthCheckResult struct {
	UUID       string `json:"uuid,omitempty"`
	Success    bool   `json:"success"`
	Model      string `json:"model,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// RefreshResult is the outcome of a Kiro quick refresh.
type RefreshResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SwitchResult is the outcome of switching a credential to the local Kiro IDE.
type SwitchResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RequiresAction  bool   `json:"requires_action"`
	RequiresRestart bool   `json:"requires_kiro_restart"`
}

// UpdatePatch carries the editable fields; nil means unchanged.
type UpdatePatch struct {
	Name               *string  `json:"name,omitempty"`
	IsDisabled         *bool    `json:"is_disabled,omitempty"`
	CheckHealth        *bool    `json:"check_health,omitempty"`
	CheckModelName     *string  `json:"check_model_name,omitempty"`
	NotSupportedModels []string `json:"not_supported_models,omitempty"`
	NewCredsFilePath   *string  `json:"new_creds_file_path,omitempty"`
	NewProjectID       *string  `json:"new_project_id,omitempty"`
	NewBaseURL         *string  `json:"new_base_url,omitempty"`
	NewAPIKey          *string  `json:"new_api_key,omitempty"`
	NewProxyURL        *string  `json:"new_proxy_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p UpdatePatch) Empty() bool {
	return p.Name == nil && p.IsDisabled == nil && p.CheckHealth == nil &&
		p.CheckModelName == nil && p.NotSupportedModels == nil &&
		p.NewCredsFilePath == nil && p.NewProjectID == nil &&
		p.NewBaseURL == nil && p.NewAPIKey == nil && p.NewProxyURL == nil
}
