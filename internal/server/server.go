// Package server exposes the console over HTTP: a gin JSON API, a
// websocket notification stream and the operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"kiro-console/internal/config"
	"kiro-console/internal/console"
	"kiro-console/internal/constants"
	mw "kiro-console/internal/middleware"
	"kiro-console/internal/monitoring"

	"github.com/gin-gonic/gin"
)

// Dependencies encapsulates runtime services required to build the engine.
type Dependencies struct {
	Controller *console.Controller
	Stream     *Stream
	SlowCalls  *monitoring.SlowCallLog
	// Config returns the live configuration; it is read per request so
	// reloads of the access key and CORS origins apply immediately.
	Config func() *config.Config
	// BaseContext outlives requests and bounds background batches.
	BaseContext context.Context
}

// Handler serves the console API.
type Handler struct {
	ctrl    *console.Controller
	stream  *Stream
	slow    *monitoring.SlowCallLog
	config  func() *config.Config
	baseCtx context.Context
	started time.Time
}

// BuildEngine constructs the gin engine with every route mounted.
func BuildEngine(deps Dependencies) *gin.Engine {
	cfg := deps.Config()
	if !cfg.Logging.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	baseCtx := deps.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	stream := deps.Stream
	if stream == nil {
		stream = NewStream(0, 0)
	}
	h := &Handler{
		ctrl:    deps.Controller,
		stream:  stream,
		slow:    deps.SlowCalls,
		config:  deps.Config,
		baseCtx: baseCtx,
		started: time.Now(),
	}

	engine := gin.New()
	_ = engine.SetTrustedProxies(nil)
	engine.Use(mw.RequestID(), mw.Recovery(), mw.Metrics(), mw.RequestLogger())
	engine.Use(mw.CORS(cfg.Server.CORSOrigins))

	engine.GET("/healthz", h.healthz)
	engine.GET("/metrics", mw.MetricsHandler())

	api := engine.Group("/api")
	api.Use(mw.AccessKey(mw.AuthConfig{
		Enabled:    func() bool { return deps.Config().Server.AccessEnabled() },
		Validate:   config.AccessKeyValidator(deps.Config),
		AllowQuery: true,
	}))
	api.Use(mw.RateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	h.register(api)
	return engine
}

func (h *Handler) register(api *gin.RouterGroup) {
	api.GET("/credentials", h.listCredentials)
	api.POST("/credentials/reload", h.reload)
	api.GET("/credentials/:id", h.getCredential)
	api.PUT("/credentials/:id", h.update)
	api.DELETE("/credentials/:id", h.deleteCredential)
	api.POST("/credentials/:id/toggle", h.toggle)
	api.POST("/credentials/:id/reset", h.reset)
	api.POST("/credentials/:id/check-health", h.checkHealth)
	api.POST("/credentials/:id/refresh-token", h.refreshToken)
	api.POST("/credentials/:id/quick-refresh", h.quickRefresh)
	api.POST("/credentials/:id/switch-local", h.switchLocal)
	api.POST("/credentials/:id/panels/:kind/toggle", h.togglePanel)
	api.POST("/credentials/:id/panels/:kind/close", h.closePanel)

	api.GET("/batch", h.batchStatus)
	api.POST("/batch/:kind", h.startBatch)

	api.GET("/notifications", h.notifications)
	api.GET("/notifications/ws", h.stream.ServeWS(newUpgrader(func() []string {
		return h.config().Server.CORSOrigins
	})))

	api.GET("/debug/slow-calls", h.slowCalls)
}

func (h *Handler) healthz(c *gin.Context) {
	store := h.ctrl.Store()
	body := gin.H{
		"status":      "ok",
		"version":     constants.GetFullVersion(),
		"uptime_s":    int64(time.Since(h.started).Seconds()),
		"kind":        store.Kind(),
		"credentials": len(store.Snapshot()),
		"streams":     h.stream.Count(),
	}
	if at := store.LoadedAt(); !at.IsZero() {
		body["loaded_at"] = at
	}
	if err := store.Err(); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}
