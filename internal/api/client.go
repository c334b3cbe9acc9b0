// Package api is the HTTP client for the task-tracking REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "http://localhost:3001/api"

const tracerName = "github.com/nibzard/taskboard-go/internal/api"

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *log.Logger
	UserAgent  string

	// OnUnauthorized runs after any 401 response, before the error is
	// returned to the caller.
	OnUnauthorized func()
}

// Client talks to the API. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     *log.Logger
	userAgent  string
	tracer     trace.Tracer
	onUnauth   func()

	mu    sync.RWMutex
	token string
}

// New returns a client for opts.BaseURL (DefaultBaseURL when empty).
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must use http or https", raw)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "taskboard"
	}

	return &Client{
		base:       base,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
		tracer:     otel.Tracer(tracerName),
		onUnauth:   opts.OnUnauthorized,
		token:      opts.Token,
	}, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type request struct {
	method string
	route  string // templated path, used for tracing ("/tasks/{id}")
	path   string
	body   interface{}
	auth   bool
}

// do sends req and decodes the envelope's data into out (which may be nil).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, req.method+" "+req.route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := uuid.NewString()
	target := c.base.JoinPath(req.path).String()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("http.route", req.route),
		attribute.String("http.url", target),
		attribute.String("taskboard.request_id", requestID),
	)

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "encode request")
			return fmt.Errorf("encode %s %s: %w", req.method, req.route, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return fmt.Errorf("build %s %s: %w", req.method, req.route, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(headerRequestID, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.method != http.MethodGet {
		httpReq.Header.Set(headerIdempotencyKey, uuid.NewString())
	}
	if req.auth {
		if token := c.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.Debug("api request failed", "method", req.method, "route", req.route, "request_id", requestID, "error", err)
		return &TransportError{Method: req.method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("api request", "method", req.method, "route", req.route, "status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond), "request_id", requestID)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read response")
		return &TransportError{Method: req.method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID}
		var env Envelope[json.RawMessage]
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.Message
		}
		span.SetStatus(codes.Error, apiErr.Error())
		// A rejected login is not a dead session.
		if resp.StatusCode == http.StatusUnauthorized && req.auth && c.onUnauth != nil {
			c.logger.Debug("received 401 unauthorized", "route", req.route)
			c.onUnauth()
		}
		return apiErr
	}
	span.SetStatus(codes.Ok, "")

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	env := Envelope[json.RawMessage]{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return &TransportError{Method: req.method, URL: target, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Method: req.method, URL: target, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
