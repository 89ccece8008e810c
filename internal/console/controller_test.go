package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"kiro-console/internal/credential"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, items ...credential.Resource) (*Controller, *stubAPI, *recordingNotifier) {
	t.Helper()
	api := newStubAPI(items...)
	notes := &recordingNotifier{}
	c := NewController(context.Background(), api, notes, &capturePublisher{}, Options{ProviderKind: "kiro"})
	require.NoError(t, c.Load(context.Background()))
	return c, api, notes
}

func TestControllerToggleWritesOppositeFlagAndReloads(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"}, credential.Resource{UUID: "B", IsDisabled: true})

	require.NoError(t, c.Toggle(context.Background(), "A"))
	assert.Equal(t, []string{"A=true"}, api.callsOf("set-disabled"))
	assert.Equal(t, "凭证已禁用", notes.last().Message)
	assert.Equal(t, SeveritySuccess, notes.last().Severity)

	require.NoError(t, c.Toggle(context.Background(), "B"))
	assert.Equal(t, []string{"A=true", "B=false"}, api.callsOf("set-disabled"))
	assert.Equal(t, "凭证已启用", notes.last().Message)

	assert.Len(t, api.callsOf("list"), 3)
}

func TestControllerToggleUnknownID(t *testing.T) {
	c, api, _ := newTestController(t)
	err := c.Toggle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, api.callsOf("set-disabled"))
}

func TestControllerDeleteDeclinedMakesNoCall(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"})
	err := c.Delete(context.Background(), "A", false)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, api.callsOf("delete"))
	assert.Empty(t, notes.all())
	assert.False(t, c.Guard().IsBusy(ActionDelete, "A"))
}

func TestControllerDeleteReloadsAndPrunes(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"}, credential.Resource{UUID: "B"})
	api.switched = &credential.SwitchResult{Success: true, Message: "ok"}
	_, err := c.SwitchToLocal(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, c.Transient().For("A"))

	api.setHook("delete", func(id string) error {
		api.setItems(credential.Resource{UUID: "B"})
		return nil
	})
	require.NoError(t, c.Delete(context.Background(), "A", true))
	assert.Equal(t, "凭证已删除", notes.last().Message)

	_, ok := c.Store().Get("A")
	assert.False(t, ok)
	_, live := c.Transient().Current()
	assert.False(t, live, "result of a removed credential is dropped")
}

func TestControllerGuardedActionBusy(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"})
	entered := make(chan struct{})
	release := make(chan struct{})
	api.setHook("check-health", func(string) error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.CheckHealth(context.Background(), "A")
		done <- err
	}()
	<-entered

	require.True(t, c.View().Credentials[0].CheckingHealth)
	_, err := c.CheckHealth(context.Background(), "A")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, api.callsOf("check-health"), 1)
	assert.False(t, c.Guard().IsBusy(ActionCheckHealth, "A"))
	assert.Len(t, notes.all(), 1)
	assert.Equal(t, "凭证验证通过", notes.last().Message)
}

func TestControllerFailureNotifiesAndReleases(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"})
	api.setErr("refresh-token", errors.New("invalid_grant"))

	err := c.RefreshToken(context.Background(), "A")
	require.Error(t, err)
	assert.Equal(t, SeverityError, notes.last().Severity)
	assert.Equal(t, "invalid_grant", notes.last().Message)
	assert.False(t, c.Guard().IsBusy(ActionRefreshToken, "A"))
	assert.Len(t, api.callsOf("list"), 2, "reload on failure too")

	api.setErr("reset", errors.New(""))
	require.Error(t, c.Reset(context.Background(), "A"))
	assert.Equal(t, "重置失败", notes.last().Message)
}

func TestControllerCheckHealthUnsuccessfulResult(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"}, credential.Resource{UUID: "B"})
	api.health["A"] = &credential.HealthCheckResult{Success: false, Message: "quota exhausted"}
	api.health["B"] = &credential.HealthCheckResult{Success: false}

	res, err := c.CheckHealth(context.Background(), "A")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, SeverityError, notes.last().Severity)
	assert.Equal(t, "quota exhausted", notes.last().Message)

	_, err = c.CheckHealth(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, "凭证验证失败", notes.last().Message)
}

func TestControllerQuickRefreshMessages(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"})

	api.refresh = &credential.RefreshResult{Success: true}
	_, err := c.QuickRefresh(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "Token 刷新成功", notes.last().Message)

	api.refresh = &credential.RefreshResult{Success: false, Error: "refresh token expired", Message: "ignored"}
	_, err = c.QuickRefresh(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "refresh token expired", notes.last().Message)

	api.refresh = &credential.RefreshResult{Success: false}
	_, err = c.QuickRefresh(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "刷新失败", notes.last().Message)
}

func TestControllerUpdateReturnsErrorWithoutNotifying(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"})
	api.setErr("update", errors.New("name too long"))

	name := "x"
	err := c.Update(context.Background(), "A", credential.UpdatePatch{Name: &name})
	require.Error(t, err)
	assert.Equal(t, "编辑失败: name too long", err.Error())
	assert.Empty(t, notes.all())

	api.setErr("update", nil)
	require.NoError(t, c.Update(context.Background(), "A", credential.UpdatePatch{Name: &name}))
	assert.Equal(t, "凭证已更新", notes.last().Message)
}

func TestControllerSwitchToLocalSetsTransientResult(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"}, credential.Resource{UUID: "B"})
	api.switched = &credential.SwitchResult{Success: true, Message: "switched", RequiresRestart: true}

	res, err := c.SwitchToLocal(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, res.RequiresRestart)
	assert.Empty(t, notes.all(), "switch results are not toasts")
	require.NotNil(t, c.Transient().For("A"))
	assert.Nil(t, c.Transient().For("B"))
	assert.Len(t, api.callsOf("list"), 2)

	api.switched = &credential.SwitchResult{Success: false, Message: "kiro not installed"}
	_, err = c.SwitchToLocal(context.Background(), "B")
	require.NoError(t, err)
	assert.Nil(t, c.Transient().For("A"), "previous result is cleared")
	got := c.Transient().For("B")
	require.NotNil(t, got)
	assert.Equal(t, "kiro not installed", got.Message)
	assert.Len(t, api.callsOf("list"), 2, "no reload on an unsuccessful switch")

	api.setErr("switch-local", errors.New("dial tcp: refused"))
	_, err = c.SwitchToLocal(context.Background(), "A")
	require.Error(t, err)
	got = c.Transient().For("A")
	require.NotNil(t, got)
	assert.False(t, got.Success)
	assert.Equal(t, "dial tcp: refused", got.Message)
}

func TestControllerTransientResultExpires(t *testing.T) {
	api := newStubAPI(credential.Resource{UUID: "A"})
	api.switched = &credential.SwitchResult{Success: true}
	c := NewController(context.Background(), api, nil, nil, Options{TransientTTL: 20 * time.Millisecond})
	require.NoError(t, c.Load(context.Background()))

	_, err := c.SwitchToLocal(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, c.View().Credentials[0].SwitchResult)
	require.Eventually(t, func() bool {
		return c.View().Credentials[0].SwitchResult == nil
	}, time.Second, 5*time.Millisecond)
}

func TestControllerViewDerivedFields(t *testing.T) {
	c, _, _ := newTestController(t, credential.Resource{
		UUID:           "0123456789abcdef",
		CredentialType: "kiro_oauth",
		IsHealthy:      true,
		Source:         credential.SourceTag("local"),
	})
	view := c.View()
	assert.Equal(t, "kiro", view.Kind)
	assert.Empty(t, view.Error)
	require.Len(t, view.Credentials, 1)
	row := view.Credentials[0]
	assert.Equal(t, "凭证 #01234567", row.DisplayName)
	assert.Equal(t, "OAuth", row.TypeLabel)
	assert.True(t, row.OAuth)
	assert.True(t, row.Healthy)
	assert.Len(t, row.Panels, 3)
	assert.False(t, view.RefreshingAll)
}

func TestControllerPanelToggle(t *testing.T) {
	c, api, _ := newTestController(t, credential.Resource{UUID: "A"})
	api.status = &credential.Status{HealthScore: 55}

	view := c.TogglePanel("A", PanelStatus)
	assert.Equal(t, PhaseLoading, view.Phase)
	c.Panels().Wait()

	view = c.ClosePanel("A", PanelStatus)
	assert.Equal(t, PhaseCollapsed, view.Phase)
	assert.Equal(t, []string{"A"}, api.callsOf("status"))
}

func TestControllerStartBatchClaimsSlot(t *testing.T) {
	c, api, notes := newTestController(t, credential.Resource{UUID: "A"})

	var run func()
	require.NoError(t, c.StartBatch(context.Background(), BatchRefreshAll, func(fn func()) { run = fn }))
	require.NotNil(t, run)
	assert.True(t, c.View().RefreshingAll)

	err := c.StartBatch(context.Background(), BatchRefreshAll, func(fn func()) { t.Fatal("spawned twice") })
	assert.ErrorIs(t, err, ErrBatchRunning)

	run()
	assert.False(t, c.View().RefreshingAll)
	assert.Equal(t, []string{"A"}, api.callsOf("refresh-token"))
	assert.Equal(t, "所有凭证已刷新", notes.last().Message)
}

func TestControllerResourceView(t *testing.T) {
	c, _, _ := newTestController(t, credential.Resource{UUID: "A"})
	v, ok := c.ResourceView("A")
	require.True(t, ok)
	assert.Equal(t, "A", v.UUID)
	_, ok = c.ResourceView("B")
	assert.False(t, ok)
}

func TestControllerViewCarriesHealthOnceStatusLoaded(t *testing.T) {
	c, api, _ := newTestController(t, credential.Resource{UUID: "A"})
	api.status = &credential.Status{HealthScore: 55}
	api.usage = &credential.Usage{UsageLimit: 200, CurrentUsage: 50}

	v, _ := c.ResourceView("A")
	assert.Nil(t, v.HealthScore)
	assert.Empty(t, v.HealthBucket)

	c.TogglePanel("A", PanelStatus)
	c.TogglePanel("A", PanelUsage)
	c.Panels().Wait()

	v, _ = c.ResourceView("A")
	require.NotNil(t, v.HealthScore)
	assert.Equal(t, float64(55), *v.HealthScore)
	assert.Equal(t, credential.HealthPoor, v.HealthBucket)

	for _, p := range v.Panels {
		switch p.Kind {
		case PanelStatus:
			status, ok := p.Data.(credential.StatusView)
			require.True(t, ok)
			assert.Equal(t, credential.HealthPoor, status.Bucket)
			assert.True(t, status.RecommendQuickRefresh)
		case PanelUsage:
			usage, ok := p.Data.(credential.UsageView)
			require.True(t, ok)
			assert.Equal(t, 25, usage.Percent)
			assert.Equal(t, 75, usage.Remaining)
		}
	}
}
