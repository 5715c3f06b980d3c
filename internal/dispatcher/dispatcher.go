package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studiowebux/execbench/internal/types"
)

const (
	// ExecutePath is appended to the configured base URL
	ExecutePath = "/execute"

	// RequestIDHeader carries a per-dispatch UUID so failures can be matched to server logs
	RequestIDHeader = "X-Request-ID"

	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// TransportError is a failure to get any HTTP response at all.
// It carries no status and no body.
type TransportError struct {
	URL       string
	RequestID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("POST %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request timed out
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Options configures a Dispatcher
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxConns       int // connection pool size, usually the number of actors
	UserAgent      string
}

// Dispatcher POSTs execution requests to {base}/execute.
// It is safe for concurrent use; every actor shares one Dispatcher.
type Dispatcher struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// New creates a Dispatcher with a pooled HTTP client
func New(opts Options) (*Dispatcher, error) {
	endpoint, err := Endpoint(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 1
	}

	return &Dispatcher{
		endpoint:   endpoint,
		userAgent:  opts.UserAgent,
		httpClient: buildHTTPClient(opts),
	}, nil
}

// Endpoint appends ExecutePath to base, collapsing trailing slashes
func Endpoint(base string) (string, error) {
	base = strings.TrimSpace(base)
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", types.NewConfigurationError("base_url", fmt.Sprintf("%q is not an absolute http(s) URL", base))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", types.NewConfigurationError("base_url", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	return strings.TrimRight(base, "/") + ExecutePath, nil
}

// URL returns the full target URL
func (d *Dispatcher) URL() string {
	return d.endpoint
}

// BuildPayload derives the request body for a test case.
// The payload shape is chosen independently of the test case record.
func BuildPayload(tc types.TestCase, shape types.PayloadShape) types.ExecutionRequest {
	req := types.ExecutionRequest{
		Language: tc.Language,
		Code:     tc.Code,
	}
	if shape == types.PayloadWithExpected {
		req.Expected = tc.Expected
	}
	return req
}

// Dispatch sends one request. A response with any status is returned as-is;
// only failures to obtain a response return a *TransportError. There are no retries.
func (d *Dispatcher) Dispatch(ctx context.Context, payload types.ExecutionRequest) (*types.ExecutionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	requestID := uuid.NewString()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if d.userAgent != "" {
		httpReq.Header.Set("User-Agent", d.userAgent)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		// connection refused, DNS failure, timeout
		return nil, &TransportError{URL: d.endpoint, RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, &TransportError{
			URL:       d.endpoint,
			RequestID: requestID,
			Err:       fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return &types.ExecutionResponse{
		Status:       resp.StatusCode,
		StatusText:   resp.Status,
		Body:         string(bodyBytes),
		Duration:     duration,
		RequestSize:  len(body),
		ResponseSize: len(bodyBytes),
		RequestID:    requestID,
	}, nil
}

// CloseIdleConnections releases pooled connections at the end of a run
func (d *Dispatcher) CloseIdleConnections() {
	d.httpClient.CloseIdleConnections()
}

// buildHTTPClient creates an HTTP client sized for load generation
func buildHTTPClient(opts Options) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        opts.MaxConns,
		MaxIdleConnsPerHost: opts.MaxConns,
		MaxConnsPerHost:     opts.MaxConns * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: opts.RequestTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   opts.RequestTimeout,
		Transport: transport,
	}
}
