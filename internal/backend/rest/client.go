// Package rest implements service.Service against the TaskBin REST backend.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskbin/internal/logging"
	"taskbin/internal/service"
)

const (
	// DefaultTimeout bounds each request when Options.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// Options configure a Client.
type Options struct {
	// BaseURL is the backend root; routes are appended to it.
	BaseURL string

	// Token is sent as the bearer credential on every request.
	Token string

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides http.DefaultClient.
	HTTPClient *http.Client

	Logger *log.Logger
}

// Client implements service.Service over HTTP.
type Client struct {
	base    *url.URL
	token   string
	timeout time.Duration
	http    *http.Client
	log     *log.Logger
}

var _ service.Service = (*Client)(nil)

// New creates a REST client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base url not configured")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url: unsupported scheme %q", base.Scheme)
	}

	c := &Client{
		base:    base,
		token:   opts.Token,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		log:     logging.OrDiscard(opts.Logger),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c, nil
}

// endpoint joins path segments onto the base URL, escaping each segment.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.base.String() + "/" + strings.Join(escaped, "/")
}

// do sends one request and returns the response body on a 2xx status.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return nil, &service.Error{Kind: service.KindInput, Op: op, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &service.Error{Kind: service.KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(log.Fields{"op": op, "method": method, "url": endpoint}).WithError(err).Debug("request failed")
		return nil, &service.Error{Kind: service.KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &service.Error{Kind: service.KindTransport, Op: op, Err: err}
	}

	c.log.WithFields(log.Fields{
		"op":       op,
		"method":   method,
		"url":      endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, service.StatusError(op, resp.StatusCode, errorMessage(data))
	}
	return data, nil
}

// decode unmarshals a response body.
func decode(op string, data []byte, out any) error {
	if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
		return &service.Error{Kind: service.KindDecode, Op: op, Err: err}
	}
	return nil
}

func decodeError(op, msg string) error {
	return &service.Error{Kind: service.KindDecode, Op: op, Err: fmt.Errorf("%s", msg)}
}

// errorMessage extracts a backend error message. The backend answers with
// {"error": "..."}, {"message": "..."} or plain text.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		return body.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// isArray reports whether a JSON document is a bare array.
func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// hasList reports whether data is a bare array or an object whose key holds
// an array.
func hasList(data []byte, key string) bool {
	if isArray(data) {
		return true
	}
	var env map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &env); err != nil {
		return false
	}
	_, ok := env[key].([]any)
	return ok
}
