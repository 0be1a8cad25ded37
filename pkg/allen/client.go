package allen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"
)

const defaultBaseURL = "https://api.brain-map.org"

// subsequent retry delays for transient upstream failures
// - roughly fibonacci growth
// - the extra 0 value is a sentinel so we don't wait again after the last attempt
var backoffDelays = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
	500 * time.Millisecond,
	800 * time.Millisecond,
	0,
}

// Client talks to the Allen Brain Atlas API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// get performs a GET request, retrying transient failures (transport errors,
// 429 and 5xx gateway statuses) with backoff and jitter. The caller owns the
// returned body.
func (c *Client) get(ctx context.Context, rawurl string) (*http.Response, error) {
	errBuilder := oops.Code("api_request_error").In("allen").With("url", rawurl)

	var lastErr error
	for _, wait := range backoffDelays {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return nil, errBuilder.Wrapf(err, "failed to create request")
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = errBuilder.Wrapf(err, "request failed")
		case retryableStatus(resp.StatusCode):
			resp.Body.Close()
			lastErr = errBuilder.Errorf("transient upstream failure: %s", resp.Status)
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return nil, errBuilder.Errorf("unexpected status: %s", resp.Status)
		default:
			return resp, nil
		}

		if wait > 0 {
			// inject up to 20% jitter
			wait += time.Duration(rand.Int63n(int64(wait) / 5))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, errBuilder.Wrap(ctx.Err())
			}
		}
	}
	return nil, lastErr
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// getJSON performs a GET request and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, rawurl string, out any) error {
	resp, err := c.get(ctx, rawurl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.Code("api_decode_error").In("allen").With("url", rawurl).
			Wrapf(err, "failed to decode response")
	}
	return nil
}

type rmaResponse struct {
	Success   bool            `json:"success"`
	Msg       json.RawMessage `json:"msg"`
	TotalRows int             `json:"total_rows"`
}

// rma runs an RMA query and returns the raw msg payload.
func (c *Client) rma(ctx context.Context, criteria string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("criteria", criteria)
	q.Set("num_rows", "all")
	rawurl := fmt.Sprintf("%s/api/v2/data/query.json?%s", c.baseURL, q.Encode())

	errBuilder := oops.Code("rma_query_error").In("allen").With("criteria", criteria)

	var r rmaResponse
	if err := c.getJSON(ctx, rawurl, &r); err != nil {
		return nil, errBuilder.Wrap(err)
	}
	if !r.Success {
		var msg string
		_ = json.Unmarshal(r.Msg, &msg)
		return nil, errBuilder.Errorf("query rejected: %s", msg)
	}
	return r.Msg, nil
}

// readAll drains and returns the response body of a GET request.
func (c *Client) readAll(ctx context.Context, rawurl string) ([]byte, error) {
	resp, err := c.get(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oops.Code("api_read_error").In("allen").With("url", rawurl).
			Wrapf(err, "failed to read response body")
	}
	return body, nil
}
