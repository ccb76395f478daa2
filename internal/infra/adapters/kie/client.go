package kie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reklamai-generation/internal/config"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/infra/metrics"
)

// Static errors for provider client operations.
var (
	// ErrAPIKeyRequired is returned when no API key is configured.
	ErrAPIKeyRequired = errors.New("kie: API key is required")
	// ErrTaskIDRequired is returned when a call is made without a task id.
	ErrTaskIDRequired = errors.New("kie: task ID is required")
	// ErrServerError is returned for 5xx answers.
	ErrServerError = errors.New("kie: server error")
	// ErrRequestFailed is returned for any other non-2xx answer.
	ErrRequestFailed = errors.New("kie: request failed")
	// ErrHTMLResponse is returned when an HTML page comes back instead of JSON.
	ErrHTMLResponse = errors.New("kie: HTML response, likely wrong endpoint or base URL")
	// ErrAPICode is returned when the JSON envelope carries a non-success code.
	ErrAPICode = errors.New("kie: API error")
	// ErrNoDownloadURL is returned when a finished task exposes no output URL.
	ErrNoDownloadURL = errors.New("kie: no download URL in response")
	// ErrFetchFailed is returned when an output file cannot be downloaded.
	ErrFetchFailed = errors.New("kie: output fetch failed")
)

const (
	maxStatusBody = 1 << 20   // 1 MiB
	maxOutputBody = 512 << 20 // 512 MiB
	snippetLen    = 200
)

var (
	_ adapter.ProviderClient = (*Client)(nil)
	_ adapter.OutputFetcher  = (*Client)(nil)
)

// Client talks to the KIE.ai REST API.
type Client struct {
	apiKey          string
	baseURL         string
	httpClient      *http.Client
	statusTimeout   time.Duration
	downloadTimeout time.Duration
	log             *zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API host (already sanitized by config).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithStatusTimeout bounds a single status request.
func WithStatusTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.statusTimeout = d
		}
	}
}

// WithDownloadTimeout bounds a single output download.
func WithDownloadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.downloadTimeout = d
		}
	}
}

func WithLogger(l *zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a provider client. The API key is mandatory.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAPIKeyRequired
	}
	nop := zerolog.Nop()
	c := &Client{
		apiKey:          apiKey,
		baseURL:         "https://api.kie.ai",
		httpClient:      &http.Client{},
		statusTimeout:   10 * time.Second,
		downloadTimeout: 10 * time.Second,
		log:             &nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig builds the client every binary uses from the kie config section.
func NewClientFromConfig(cfg config.KIEConfig, logger *zerolog.Logger) (*Client, error) {
	opts := []ClientOption{
		WithStatusTimeout(cfg.StatusTimeout),
		WithDownloadTimeout(cfg.DownloadTimeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewClient(cfg.APIKey, opts...)
}

// Status fetches {base}{statusPath}?taskId=... for the family and normalizes it.
// No retries happen here; the caller polls again later.
func (c *Client) Status(ctx context.Context, taskID, family string) (*model.ProviderStatusResult, error) {
	if taskID == "" {
		return nil, ErrTaskIDRequired
	}
	fam := ParseFamily(family)
	ep := endpointTable[fam]

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	start := time.Now()
	body, err := c.getJSON(ctx, ep.StatusPath, taskID)
	if err != nil {
		metrics.ObserveProviderCall(string(fam), "status", "error", time.Since(start))
		return nil, err
	}
	res, err := ParseStatus(body)
	if err != nil {
		metrics.ObserveProviderCall(string(fam), "status", "error", time.Since(start))
		return nil, err
	}
	metrics.ObserveProviderCall(string(fam), "status", "ok", time.Since(start))

	c.log.Debug().
		Str("family", string(fam)).
		Str("task_id", taskID).
		Str("status", string(res.Status)).
		Bool("has_output", res.OutputURL != "").
		Msg("kie status")
	return res, nil
}

// DownloadURL resolves the output URL of a finished task from its record.
func (c *Client) DownloadURL(ctx context.Context, taskID, family string) (string, error) {
	res, err := c.Status(ctx, taskID, family)
	if err != nil {
		return "", err
	}
	if res.OutputURL == "" {
		return "", ErrNoDownloadURL
	}
	return res.OutputURL, nil
}

// Fetch downloads an output file. Output URLs are public CDN links, so no
// provider credentials are attached.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOutputBody))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return body, ct, nil
}

func (c *Client) getJSON(ctx context.Context, path, taskID string) ([]byte, error) {
	u := c.baseURL + path + "?taskId=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("kie: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return nil, fmt.Errorf("kie: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: %d - %s", ErrServerError, resp.StatusCode, snippet(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d - %s", ErrRequestFailed, resp.StatusCode, snippet(body))
	}
	if isHTML(resp.Header.Get("Content-Type"), body) {
		return nil, fmt.Errorf("%w: %s", ErrHTMLResponse, path)
	}
	return body, nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.ToLower(bytes.TrimSpace(body))
	return bytes.HasPrefix(trimmed, []byte("<!doctype")) || bytes.HasPrefix(trimmed, []byte("<html"))
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > snippetLen {
		return s[:snippetLen]
	}
	return s
}
