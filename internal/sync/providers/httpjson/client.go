// Package httpjson provides a generic sync service for JSON REST APIs.
//
// receive fetches {api_base}/{path} with basic auth and records the exchange.
// process extracts items from the response with a gjson path and maps each
// one to a local record through the registry. prepare collects the
// provider's registry entries for the model, and send posts them to
// {api_base}/{send_path} when a send path is configured.
//
// Schedule kwargs:
//
//	path                resource to fetch, defaults to the model's short name
//	items_path          gjson path to the item list, defaults to @this
//	id_field            gjson path to an item's external id, defaults to id
//	external_provider   value stored as the entries' external provider id
//	send_path           resource to post prepared data to; sending is skipped when unset
package httpjson

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/flightops/flight-data-server/internal/models"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxTries = 4
	maxBodySize     = 16 << 20

	// RunAsHeader names the user a request is made on behalf of
	RunAsHeader = "X-Run-As"
)

// Client talks to one provider's API.
type Client struct {
	base     *url.URL
	http     *http.Client
	username string
	password string
	maxTries uint
	backoff  func() backoff.BackOff
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithRetry sets how many attempts a request gets and the delay policy between them
func WithRetry(maxTries uint, newBackOff func() backoff.BackOff) ClientOption {
	return func(cl *Client) {
		cl.maxTries = maxTries
		cl.backoff = newBackOff
	}
}

// NewClient creates a client for provider
func NewClient(provider *models.Provider, opts ...ClientOption) (*Client, error) {
	if provider.APIBase == "" {
		return nil, fmt.Errorf("provider %q has no api_base", provider.Name)
	}
	base, err := url.Parse(provider.APIBase)
	if err != nil {
		return nil, fmt.Errorf("invalid api_base: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api_base %q: scheme must be http or https", provider.APIBase)
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		username: provider.Username,
		password: provider.Password,
		maxTries: defaultMaxTries,
		backoff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Response is what a request returned
type Response struct {
	Request string
	Status  int
	Headers http.Header
	Body    []byte
}

// Describe renders the request line and response headers for the sync log
func (r *Response) Describe() string {
	var b strings.Builder
	b.WriteString(r.Request)
	fmt.Fprintf(&b, "\nStatus: %d", r.Status)
	if ct := r.Headers.Get("Content-Type"); ct != "" {
		fmt.Fprintf(&b, "\nContent-Type: %s", ct)
	}
	return b.String()
}

// CallOption adjusts a single request
type CallOption func(*http.Request)

// OnBehalfOf sets the run-as header; an empty user leaves it unset
func OnBehalfOf(user string) CallOption {
	return func(r *http.Request) {
		if user != "" {
			r.Header.Set(RunAsHeader, user)
		}
	}
}

// Get fetches path relative to the API base
func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts)
}

// Post sends body as JSON to path relative to the API base
func (c *Client) Post(ctx context.Context, path string, body []byte, opts ...CallOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, opts)
}

func (c *Client) resolve(path string) string {
	return c.base.JoinPath(strings.TrimPrefix(path, "/")).String()
}

// do sends the request, retrying network failures and 5xx/429 responses.
// When the final attempt got a response with an error status, that response
// is returned along with the error.
func (c *Client) do(ctx context.Context, method, path string, body []byte, opts []CallOption) (*Response, error) {
	target := c.resolve(path)

	var last *Response
	attempt := func() (*Response, error) {
		last = nil
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.username != "" || c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}

		out := &Response{
			Request: method + " " + target,
			Status:  resp.StatusCode,
			Headers: resp.Header,
			Body:    data,
		}
		last = out
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("%s %s: unexpected status %d", method, target, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, backoff.Permanent(fmt.Errorf("%s %s: unexpected status %d", method, target, resp.StatusCode))
		}
		return out, nil
	}

	resp, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return last, err
	}
	return resp, nil
}
