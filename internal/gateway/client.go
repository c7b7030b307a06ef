// Package gateway talks to the marketplace product import API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// DefaultBaseURL is the Kaspi shop API root.
const DefaultBaseURL = "https://kaspi.kz/shop/api"

// ErrProtocol marks a marketplace reply that does not match the expected contract.
var ErrProtocol = errors.New("marketplace protocol error")

// StatusError is returned for non-2xx replies.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is an HTTP client for the import endpoints.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// New returns a Client. The token is sent as X-Auth-Token on every request.
func New(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("token is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		to := opts.Timeout
		if to <= 0 {
			to = 20 * time.Second
		}
		hc = &http.Client{Timeout: to}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "go-product-importflow/1.0"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		token:     opts.Token,
		userAgent: ua,
		http:      hc,
		logger:    logger,
	}, nil
}

// uploadStatus is the wire form of the submit and status replies.
type uploadStatus struct {
	Code   *string `json:"code"`
	Status *string `json:"status"`
}

// Submit posts p as a single-item import batch and returns the tracking code.
func (c *Client) Submit(ctx context.Context, p catalog.Product) (string, error) {
	body, err := json.Marshal([]catalog.Product{p})
	if err != nil {
		return "", fmt.Errorf("marshal product: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/products/import", body)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	code, _, err := parseUploadStatus(raw)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	c.logger.Debug("import accepted", "sku", p.SKU, "code", code)
	return code, nil
}

// PollStatus returns the current import state for code.
func (c *Client) PollStatus(ctx context.Context, code string) (catalog.Status, error) {
	raw, err := c.do(ctx, http.MethodGet, c.importURL("/products/import", code), nil)
	if err != nil {
		return "", fmt.Errorf("poll %s: %w", code, err)
	}
	_, st, err := parseUploadStatus(raw)
	if err != nil {
		return "", fmt.Errorf("poll %s: %w", code, err)
	}
	return st, nil
}

// FetchResult returns the detailed outcome of the import behind code.
func (c *Client) FetchResult(ctx context.Context, code string) (catalog.UploadResult, error) {
	raw, err := c.do(ctx, http.MethodGet, c.importURL("/products/import/result", code), nil)
	if err != nil {
		return catalog.UploadResult{}, fmt.Errorf("fetch result %s: %w", code, err)
	}
	var r catalog.UploadResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return catalog.UploadResult{}, fmt.Errorf("fetch result %s: %w: %v", code, ErrProtocol, err)
	}
	if r.Result == nil {
		r.Result = []string{}
	}
	return r, nil
}

func (c *Client) importURL(path, code string) string {
	return c.baseURL + path + "?" + url.Values{"i": {code}}.Encode()
}

func parseUploadStatus(raw []byte) (string, catalog.Status, error) {
	var us uploadStatus
	if err := json.Unmarshal(raw, &us); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if us.Code == nil || *us.Code == "" {
		return "", "", fmt.Errorf("%w: missing code", ErrProtocol)
	}
	if us.Status == nil {
		return "", "", fmt.Errorf("%w: missing status", ErrProtocol)
	}
	st, err := catalog.ParseStatus(*us.Status)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return *us.Code, st, nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		// The import endpoint only accepts the batch as text/plain.
		req.Header.Set("Content-Type", "text/plain")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.logger.Debug("marketplace call", "method", method, "url", u, "status", resp.StatusCode, "latency", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(b))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return b, nil
}
