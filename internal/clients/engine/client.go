package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient  HTTPClient
	rateLimiter *rate.Limiter
	runURL      string
	secret      string
	timeout     time.Duration
}

func NewClient(runURL string, timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{}, runURL: runURL, timeout: timeout}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

func (c *Client) SetRateLimit(maxRequestsPerSecond float32) {
	if maxRequestsPerSecond <= 0 {
		c.rateLimiter = nil
		return
	}
	c.rateLimiter = rate.NewLimiter(rate.Limit(maxRequestsPerSecond), 1)
}

// SetSharedSecret makes the client send the secret the engine uses to authenticate callers.
func (c *Client) SetSharedSecret(secret string) {
	c.secret = secret
}

func (c *Client) StartRun(ctx context.Context, request RunRequest) (*RunResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("error encoding run request: %w", err)
	}

	body, err := c.sendRequest(ctx, http.MethodPost, c.runURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	// some workflows answer with an empty body when nothing was found
	if len(bytes.TrimSpace(body)) == 0 {
		return &RunResponse{}, nil
	}

	var response RunResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(models.ErrUpstreamMalformed, "error decoding run response: %v", err)
	}
	return &response, nil
}

func (c *Client) FetchDataset(ctx context.Context, datasetURL string) ([]DatasetItem, error) {
	body, err := c.sendRequest(ctx, http.MethodGet, datasetURL, nil)
	if err != nil {
		return nil, err
	}

	var items []DatasetItem
	if err = json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrapf(models.ErrUpstreamMalformed, "dataset is not a JSON array: %v", err)
	}
	return items, nil
}

func (c *Client) sendRequest(ctx context.Context, method string, url string, body io.Reader) ([]byte, error) {

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "rate limiter: %v", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set("x-shared-secret", c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "error sending request: %v", err)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "error reading response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "request failed with status %v, body: %v",
			resp.StatusCode, truncate(string(body), 512))
	}

	if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
		return nil, errors.Wrapf(models.ErrUpstreamMalformed, "response is not JSON: %v", truncate(string(body), 128))
	}

	return body, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
