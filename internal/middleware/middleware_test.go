package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	t.Run("Generate request ID when not provided", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		var seen string
		router.GET("/test", func(c *gin.Context) {
			seen = c.GetString("request_id")
			c.String(http.StatusOK, "OK")
		})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))
		rid := w.Header().Get("X-Request-ID")
		require.NotEmpty(t, rid)
		assert.Equal(t, rid, seen)
		_, err := uuid.Parse(rid)
		assert.NoError(t, err)
	})

	t.Run("Use provided request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "custom-request-id")
		w := serve(router, req)
		assert.Equal(t, "custom-request-id", w.Header().Get("X-Request-ID"))
	})

	t.Run("Replace oversized request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
		w := serve(router, req)
		assert.Len(t, w.Header().Get("X-Request-ID"), 36)
	})
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/panic", func(c *gin.Context) { panic("test panic") })
	router.GET("/normal", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "panic_recovered")

	w = serve(router, httptest.NewRequest(http.MethodGet, "/normal", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSafeGo(t *testing.T) {
	done := make(chan struct{})
	SafeGo("test-goroutine", func() {
		defer close(done)
		panic("goroutine panic")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestRequestLogger(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.String(http.StatusBadGateway, "bad")
	})

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/ok", nil)).Code)
	assert.Equal(t, http.StatusBadGateway, serve(router, httptest.NewRequest(http.MethodGet, "/fail", nil)).Code)
}

func TestMetrics(t *testing.T) {
	router := gin.New()
	router.Use(Metrics())
	router.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "ok"}) })
	router.GET("/metrics", MetricsHandler())

	serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	w := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "kiro_console_http_requests_total")
	assert.Contains(t, body, `path="/test"`)
	assert.Contains(t, body, `path="unmatched"`)
}

func TestCORS(t *testing.T) {
	t.Run("No origins configured sends no headers", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS(nil))
		r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set("Origin", "http://evil.local")
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Listed origin is echoed", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS([]string{"http://ui.local/"}))
		r.GET("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set("Origin", "http://ui.local")
		w := serve(r, req)
		assert.Equal(t, "http://ui.local", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.Header.Set("Origin", "http://other.local")
		w = serve(r, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Preflight short-circuits", func(t *testing.T) {
		r := gin.New()
		r.Use(CORS([]string{"*"}))
		r.POST("/api/ping", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
		req.Header.Set("Origin", "http://any.local")
		w := serve(r, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "false", w.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("Block requests exceeding limit", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimiter(1, 1))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

		assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
	})

	t.Run("Disabled when rps is zero", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimiter(0, 0))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
		}
	})

	t.Run("Keys are limited separately", func(t *testing.T) {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(accessKeyContextKey, c.GetHeader("x-api-key"))
			c.Next()
		}, RateLimiter(1, 1))
		router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

		for _, key := range []string{"a", "b"} {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("x-api-key", key)
			assert.Equal(t, http.StatusOK, serve(router, req).Code, key)
		}
	})
}

func TestLimiterCacheSweepsIdleKeys(t *testing.T) {
	now := time.Now()
	cache := newTTLLimiterCache(time.Minute)
	cache.now = func() time.Time { return now }
	mk := func() *rate.Limiter { return rate.NewLimiter(1, 1) }

	first := cache.get("a", mk)
	assert.Same(t, first, cache.get("a", mk))
	cache.get("b", mk)
	require.Equal(t, 2, cache.len())

	now = now.Add(limiterSweepEvery + time.Minute)
	cache.get("c", mk)
	assert.Equal(t, 1, cache.len())
}

func TestAccessKey(t *testing.T) {
	enabled := true
	newRouter := func(allowQuery bool) *gin.Engine {
		r := gin.New()
		r.Use(AccessKey(AuthConfig{
			Enabled:    func() bool { return enabled },
			Validate:   func(k string) bool { return k == "secret" },
			AllowQuery: allowQuery,
		}))
		r.GET("/api/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(accessKeyContextKey)) })
		return r
	}

	r := newRouter(false)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_access_key")

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_access_key")

	req = httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("Authorization", "bearer secret")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.Header.Set("x-api-key", "secret")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/api/x?key=secret", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(newRouter(true), httptest.NewRequest(http.MethodGet, "/api/x?key=secret", nil)).Code)

	enabled = false
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/x", nil)).Code)
}
