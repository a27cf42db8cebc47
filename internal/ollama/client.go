package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"ollama-bridge/internal/config"
	"ollama-bridge/internal/metrics"
)

const (
	userAgent    = "ollama-bridge/1.0"
	maxErrorBody = 64 * 1024

	pathTags     = "/api/tags"
	pathVersion  = "/api/version"
	pathGenerate = "/api/generate"

	endpointTags           = "tags"
	endpointVersion        = "version"
	endpointGenerate       = "generate"
	endpointGenerateStream = "generate_stream"

	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Client talks to an Ollama server's native HTTP API. A single Client is
// shared by all requests; it holds no per-request state.
type Client struct {
	http          *resty.Client
	log           *zap.Logger
	timeout       time.Duration
	modelsTimeout time.Duration
	healthTimeout time.Duration
	idleTimeout   time.Duration
}

// NewClient creates a client for the configured upstream. Deadlines are
// applied per call, so the underlying http.Client has no global timeout
// and long-lived streams are not cut off.
func NewClient(cfg config.UpstreamConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	c := resty.NewWithClient(newHTTPClient(cfg.MaxIdleConns)).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", userAgent).
		SetLogger(log.Sugar())

	return &Client{
		http:          c,
		log:           log,
		timeout:       cfg.Timeout,
		modelsTimeout: cfg.ModelsTimeout,
		healthTimeout: cfg.HealthTimeout,
		idleTimeout:   cfg.StreamIdle(),
	}
}

func newHTTPClient(maxIdleConns int) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConns,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// Tags lists the models installed on the upstream.
func (c *Client) Tags(ctx context.Context) (*TagsResponse, error) {
	var out TagsResponse
	if err := c.call(ctx, endpointTags, http.MethodGet, pathTags, c.modelsTimeout, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version probes the upstream version endpoint.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var out VersionResponse
	if err := c.call(ctx, endpointVersion, http.MethodGet, pathVersion, c.healthTimeout, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate performs a non-streaming generation and returns the single
// aggregate response object.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false

	var out GenerateResponse
	if err := c.call(ctx, endpointGenerate, http.MethodPost, pathGenerate, c.timeout, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, endpoint, method, path string, timeout time.Duration, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.log.Debug("ollama request", zap.String("endpoint", path), zap.String("method", method))

	start := time.Now()
	r := c.http.R().SetContext(ctx)
	if body != nil {
		r.SetBody(body)
	}

	resp, err := r.Execute(method, path)
	metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.ResultUnavailable).Inc()
		c.log.Error("ollama request failed", zap.String("endpoint", path), zap.Error(err))
		return &UnavailableError{Endpoint: path, Err: err}
	}

	if !resp.IsSuccess() {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.ResultRejected).Inc()
		c.log.Error("ollama non-2xx status",
			zap.String("endpoint", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.ByteString("body", truncate(resp.Body(), 512)),
		)
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode(), Body: truncate(resp.Body(), maxErrorBody)}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.ResultError).Inc()
		return fmt.Errorf("decode ollama %s response: %w", path, err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, metrics.ResultOK).Inc()
	return nil
}

// GenerateStream starts a streaming generation and returns the raw NDJSON
// body. The generate timeout bounds only the wait for response headers;
// afterwards each read must make progress within the idle timeout.
// Cancelling ctx aborts the stream. The caller must Close the body.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	req.Stream = true

	ctx, cancel := context.WithCancelCause(ctx)
	connectTimer := time.AfterFunc(c.timeout, func() { cancel(ErrConnectTimeout) })

	c.log.Debug("ollama stream request", zap.String("endpoint", pathGenerate), zap.String("model", req.Model))

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(pathGenerate)
	headersInTime := connectTimer.Stop()
	metrics.UpstreamLatency.WithLabelValues(endpointGenerateStream).Observe(time.Since(start).Seconds())

	if err == nil && !headersInTime {
		resp.RawBody().Close()
		err = ErrConnectTimeout
	}
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrConnectTimeout) {
			err = fmt.Errorf("%w after %s", ErrConnectTimeout, c.timeout)
		}
		cancel(nil)
		metrics.UpstreamRequestsTotal.WithLabelValues(endpointGenerateStream, metrics.ResultUnavailable).Inc()
		c.log.Error("ollama stream request failed", zap.String("endpoint", pathGenerate), zap.Error(err))
		return nil, &UnavailableError{Endpoint: pathGenerate, Err: err}
	}

	body := resp.RawBody()
	if !resp.IsSuccess() {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		body.Close()
		cancel(nil)
		metrics.UpstreamRequestsTotal.WithLabelValues(endpointGenerateStream, metrics.ResultRejected).Inc()
		c.log.Error("ollama stream non-2xx status",
			zap.Int("status_code", resp.StatusCode()),
			zap.ByteString("body", truncate(data, 512)),
		)
		return nil, &StatusError{Endpoint: pathGenerate, StatusCode: resp.StatusCode(), Body: data}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpointGenerateStream, metrics.ResultOK).Inc()
	return newIdleReader(ctx, cancel, body, c.idleTimeout), nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
