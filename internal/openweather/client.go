package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// HTTPClient is the subset of *http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a decoded JSON object, matched by key presence only.
type Response = map[string]any

// Result is the outcome of one fetch. Data is never nil; on failure it is
// empty and Err says why.
type Result struct {
	Data Response
	Err  error
}

func (r Result) OK() bool {
	return r.Err == nil
}

var ErrNotObject = errors.New("response body is not a JSON object")

type Client struct {
	http   HTTPClient
	logger *slog.Logger
}

// NewClient returns a fetcher. A nil httpClient means a plain *http.Client
// with the transport defaults and no overall timeout.
func NewClient(httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, logger: logger}
}

// Fetch GETs rawURL and decodes the body as a JSON object. Failures are
// logged and reported through Result.Err.
func (c *Client) Fetch(ctx context.Context, endpoint, rawURL string) Result {
	data, err := c.get(ctx, rawURL)
	if err != nil {
		c.logger.Warn("error getting data from server", "endpoint", endpoint, "error", err)
		return Result{Data: Response{}, Err: err}
	}
	c.logger.Debug("fetched", "endpoint", endpoint, "keys", len(data))
	return Result{Data: data}
}

func (c *Client) get(ctx context.Context, rawURL string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", redact(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// redact drops the request URL, which carries the API key, from transport
// errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
