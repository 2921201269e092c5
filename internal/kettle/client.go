package kettle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the HTTP client shared by every probe of a run. It is created once
// at process start and must be closed on exit.
type Client struct {
	client *http.Client
	token  string
}

// NewClient creates an HTTP client with a request timeout and an optional
// bearer token sent on every request.
func NewClient(timeout time.Duration, token string) *Client {
	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		token: token,
	}
}

// Get issues a GET request and returns the status code. The body is drained
// so the connection can be reused.
func (c *Client) Get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &RequestError{URL: url, Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "teatime")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// HTTPClient exposes the underlying client for callers that need the body.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Close releases idle connections held by the transport.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// RequestError reports a request that could not be built.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("build request %s: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
