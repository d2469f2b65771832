package core

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

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	maxErrorBody   = 64 << 10
	initialBackoff = 500 * time.Millisecond
)

// Request describes one HTTP exchange. Body is reopened for every attempt.
type Request struct {
	Method        string
	URL           string
	Query         url.Values
	Header        http.Header
	Body          func() (io.ReadCloser, error)
	ContentLength int64
	// Anonymous requests skip the Authorization header; used for
	// pre-signed transfer URLs.
	Anonymous bool
}

func (r *Request) fullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + r.Query.Encode()
}

// Client issues authenticated requests against one backend.
type Client struct {
	authed  *http.Client
	plain   *http.Client
	retries uint64
	backoff time.Duration
	logger  *zap.Logger
}

// TokenType is the Authorization scheme a backend expects.
func TokenType(b Backend) string {
	if b == Yandex {
		return "OAuth"
	}
	return "Bearer"
}

// newTransport bounds connecting and waiting for response headers by
// timeout. Bodies are not bounded, so long transfers run until the context
// is cancelled.
func newTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if timeout <= 0 {
		return t
	}

	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	t.DialContext = dialer.DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
	return t
}

// NewHTTPClient returns an *http.Client that attaches the configured token
// to every request.
func NewHTTPClient(cfg BackendConfig) *http.Client {
	base := &http.Client{Transport: newTransport(cfg.Timeout)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   TokenType(cfg.Backend),
	})

	return oauth2.NewClient(ctx, src)
}

func NewClient(cfg BackendConfig, logger *zap.Logger) *Client {
	return &Client{
		authed:  NewHTTPClient(cfg),
		plain:   &http.Client{Transport: newTransport(cfg.Timeout)},
		retries: cfg.Retries,
		backoff: initialBackoff,
		logger:  LoggerOrNop(logger),
	}
}

// Do performs r and returns the open response of a 2xx answer. Any other
// status is returned as *APIError, connection failures as *TransportError.
func (c *Client) Do(ctx context.Context, r *Request) (*http.Response, error) {
	var resp *http.Response

	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		res, err := c.attempt(ctx, r)
		if err != nil {
			if isRetryable(err) && ctx.Err() == nil {
				c.logger.Debug("retrying request", zap.String("method", r.Method), zap.String("url", r.URL), zap.Error(err))
				return retry.RetryableError(err)
			}
			return err
		}
		resp = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, r *Request) (*http.Response, error) {
	target := r.fullURL()

	var body io.ReadCloser
	if r.Body != nil {
		var err error
		body, err = r.Body()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return nil, err
	}
	if r.ContentLength > 0 {
		req.ContentLength = r.ContentLength
	}
	for k, vs := range r.Header {
		req.Header[k] = vs
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	client := c.authed
	if r.Anonymous {
		client = c.plain
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.Method, URL: r.URL, Err: err}
	}
	c.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("url", r.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: VendorMessage(data)}
	}

	return resp, nil
}

// JSON performs r and decodes a JSON body into out when out is not nil.
func (c *Client) JSON(ctx context.Context, r *Request, out any) (int, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode, err
		}
		return 0, err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", r.Method, r.URL, err)
	}
	return resp.StatusCode, nil
}

// Stream performs r and copies the response body into w.
func (c *Client) Stream(ctx context.Context, r *Request, w io.Writer) (int64, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: r.Method, URL: r.URL, Err: err}
	}
	return n, nil
}

func isRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

// VendorMessage extracts the human readable part of an error body. JSON
// bodies are searched for the usual message fields, anything else is
// returned as trimmed text.
func VendorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}

	if nested, ok := doc["error"].(map[string]any); ok {
		if msg, ok := nested["message"].(string); ok && msg != "" {
			return msg
		}
	}
	for _, key := range []string{"message", "description", "error"} {
		if msg, ok := doc[key].(string); ok && msg != "" {
			return msg
		}
	}
	return string(body)
}
