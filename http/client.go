package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lockwatch/lockdash/logger"
	"github.com/lockwatch/lockdash/trace"
)

const (
	// DefaultTimeout is the default request timeout duration
	DefaultTimeout = 20 * time.Second

	// HeaderXRequestID is the default request ID header
	HeaderXRequestID = trace.HeaderXRequestID

	maxLoggedBody = 512
)

// client implements the Client interface
type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config
	baseURL    *url.URL
}

// NewClient creates a new REST client with default configuration
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the REST client
type Builder struct {
	config     *Config
	logger     logger.Logger
	httpClient *nethttp.Client
	transport  nethttp.RoundTripper
}

// NewBuilder creates a new client builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: &Config{
			Timeout:         DefaultTimeout,
			DefaultHeaders:  map[string]string{"Accept": "application/json"},
			RequestIDHeader: HeaderXRequestID,
		},
		logger: log,
	}
}

// WithBaseURL sets the URL that relative request URLs are resolved against
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.BaseURL = base
	return b
}

// WithTimeout sets the overall request timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestIDHeader changes the header used for request ID propagation.
// An empty name keeps the default.
func (b *Builder) WithRequestIDHeader(name string) *Builder {
	if name != "" {
		b.config.RequestIDHeader = name
	}
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithHTTPClient uses a caller-provided *http.Client. Its own timeout wins
// when set.
func (b *Builder) WithHTTPClient(c *nethttp.Client) *Builder {
	b.httpClient = c
	return b
}

// WithTransport sets the round tripper of the underlying client
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// Build creates the REST client with the configured options
func (b *Builder) Build() Client {
	hc := b.httpClient
	if hc == nil {
		hc = &nethttp.Client{}
	}
	if hc.Timeout == 0 {
		hc.Timeout = b.config.Timeout
	}
	if b.transport != nil {
		hc.Transport = b.transport
	}

	var base *url.URL
	if b.config.BaseURL != "" {
		if u, err := url.Parse(strings.TrimRight(b.config.BaseURL, "/") + "/"); err == nil {
			base = u
		}
	}

	log := b.logger
	if log == nil {
		log = logger.Nop()
	}

	return &client{httpClient: hc, logger: log, config: b.config, baseURL: base}
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// Do performs a single HTTP request with the specified method
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	httpReq, err := c.buildRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}
	c.logRequest(httpReq, req)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTimeoutError("request timeout", c.httpClient.Timeout, err)
		}
		return nil, NewNetworkError("request execution failed", err)
	}

	resp, err := c.buildResponse(ctx, start, httpReq, httpResp)
	if err != nil {
		return nil, err
	}
	c.logResponse(httpReq, resp)

	if IsSuccessStatus(resp.StatusCode) {
		return resp, nil
	}
	return resp, NewHTTPError(nethttp.StatusText(resp.StatusCode), resp.StatusCode, resp.Body)
}

func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request")
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url")
	}
	return nil
}

func (c *client) resolveURL(req *Request) (string, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return "", NewValidationError("invalid URL: "+err.Error(), "url")
	}
	if !target.IsAbs() && c.baseURL != nil {
		target = c.baseURL.ResolveReference(&url.URL{
			Path:     strings.TrimPrefix(target.Path, "/"),
			RawQuery: target.RawQuery,
		})
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target.String(), nil
}

// applyHeaders applies default, request-specific and request ID headers
func (c *client) applyHeaders(ctx context.Context, httpReq *nethttp.Request, req *Request) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(c.config.RequestIDHeader) == "" {
		httpReq.Header.Set(c.config.RequestIDHeader, trace.EnsureRequestID(ctx))
	}
}

// applyAuth applies authentication; request-specific auth takes precedence
func (c *client) applyAuth(httpReq *nethttp.Request, req *Request) {
	auth := req.Auth
	if auth == nil {
		auth = c.config.BasicAuth
	}
	if auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
}

// buildRequest constructs an *http.Request, applies headers/auth, and runs request interceptors.
func (c *client) buildRequest(ctx context.Context, method string, req *Request) (*nethttp.Request, error) {
	target, err := c.resolveURL(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewValidationError("failed to create HTTP request: "+err.Error(), "request")
	}

	c.applyHeaders(ctx, httpReq, req)
	c.applyAuth(httpReq, req)

	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	return httpReq, nil
}

// buildResponse runs response interceptors, reads body, and builds a Response.
func (c *client) buildResponse(ctx context.Context, start time.Time, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, NewTimeoutError("reading response body", c.httpClient.Timeout, err)
		}
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Headers:    httpResp.Header,
		Elapsed:    time.Since(start),
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *client) logRequest(httpReq *nethttp.Request, req *Request) {
	c.logger.Debug().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", httpReq.Header.Get(c.config.RequestIDHeader)).
		Int("body_bytes", len(req.Body)).
		Msg("lock API request")
}

func (c *client) logResponse(httpReq *nethttp.Request, resp *Response) {
	body := resp.Body
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody]
	}
	c.logger.Debug().
		Str("direction", "inbound").
		Str("url", httpReq.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Str("body", string(body)).
		Msg("lock API response")
}
