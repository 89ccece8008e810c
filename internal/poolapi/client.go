// Package poolapi talks to the host's provider-pool HTTP API.
package poolapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"kiro-console/internal/constants"
	"kiro-console/internal/logging"
	"kiro-console/internal/monitoring"
	"kiro-console/internal/monitoring/tracing"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Options configure a Client.
type Options struct {
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token         string
	RetryMax      int
	Timeout       time.Duration
	HealthTimeout time.Duration
	// SlowCalls records calls slower than its threshold; nil disables it.
	SlowCalls *monitoring.SlowCallLog
	// Transport overrides the base round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client implements the console's remote API over HTTP. Idempotent GETs go
// through a retrying client; mutations are sent exactly once.
type Client struct {
	baseURL       string
	reads         *http.Client
	writes        *http.Client
	timeout       time.Duration
	healthTimeout time.Duration
	slow          *monitoring.SlowCallLog
}

type opKey struct{}

// retryLogger adapts logrus to retryablehttp.LeveledLogger.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { log.WithFields(kvFields(kv)).Warn(msg) }
func (retryLogger) Warn(msg string, kv ...interface{})  { log.WithFields(kvFields(kv)).Warn(msg) }
func (retryLogger) Info(msg string, kv ...interface{})  {}
func (retryLogger) Debug(msg string, kv ...interface{}) { log.WithFields(kvFields(kv)).Debug(msg) }

func kvFields(kv []interface{}) log.Fields {
	fields := log.Fields{"component": "poolapi"}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

// New builds a client for the pool at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("poolapi: base url is required")
	}

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(constants.GetBaseTransportConfig())
	}
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{Transport: transport}
	retryClient.RetryMax = opts.RetryMax
	if retryClient.RetryMax < 0 {
		retryClient.RetryMax = 0
	}
	retryClient.RetryWaitMin = constants.UpstreamRetryDelay
	retryClient.RetryWaitMax = constants.UpstreamMaxRetryDelay
	retryClient.Logger = retryLogger{}
	// Keep the last response so the pool's error body reaches the caller.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt == 0 {
			return
		}
		op, _ := req.Context().Value(opKey{}).(string)
		monitoring.UpstreamRetryAttempts.WithLabelValues(op).Inc()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = constants.UpstreamCallTimeout
	}
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = constants.HealthCheckCallTimeout
	}

	return &Client{
		baseURL:       base,
		reads:         retryClient.StandardClient(),
		writes:        &http.Client{Transport: transport},
		timeout:       timeout,
		healthTimeout: healthTimeout,
		slow:          opts.SlowCalls,
	}, nil
}

func newTransport(cfg constants.TransportConfig) *http.Transport {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeader,
		ExpectContinueTimeout: constants.DefaultExpectContinueTimeout,
	}
}

// call performs one request and returns the body of a 2xx response.
func (c *Client) call(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	timeout := c.timeout
	if op == "check-health" {
		timeout = c.healthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = context.WithValue(ctx, opKey{}, op)

	ctx, span := tracing.StartSpan(ctx, "poolapi", op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constants.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.writes
	if method == http.MethodGet {
		client = c.reads
	}

	start := time.Now()
	resp, err := client.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	elapsed := time.Since(start)
	c.observe(op, status, elapsed, err)

	entry := log.WithFields(log.Fields{
		"component":   "poolapi",
		"op":          op,
		"request_id":  requestID,
		"status":      status,
		"duration_ms": logging.DurationMS(elapsed),
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		entry.WithError(err).WithFields(log.Fields{"error_kind": logging.ErrorKind(status, true), "cause": logging.CauseKind(err)}).Warn("pool api call failed")
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status >= 300 {
		apiErr := errorFromBody(op, status, payload)
		span.SetStatus(codes.Error, apiErr.Message)
		entry.WithField("error_kind", logging.ErrorKind(status, false)).Debug(apiErr.Message)
		return nil, apiErr
	}
	entry.Debug("pool api call")
	return payload, nil
}

func (c *Client) observe(op string, status int, elapsed time.Duration, err error) {
	monitoring.UpstreamRequestsTotal.WithLabelValues(op, monitoring.StatusClass(status)).Inc()
	monitoring.UpstreamRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if c.slow == nil {
		return
	}
	call := monitoring.SlowCall{
		Timestamp:  time.Now().Add(-elapsed),
		Operation:  op,
		Duration:   elapsed,
		StatusCode: status,
	}
	if err != nil {
		call.Error = err.Error()
	}
	c.slow.Observe(call)
}
