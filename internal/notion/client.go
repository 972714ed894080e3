package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

const (
	// DefaultBaseURL is the public API root of the record store
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion is the API version sent with every request
	DefaultVersion = "2022-06-28"

	rateLimitedCode = "rate_limited"
	maxErrorBody    = 4096
	// maxErrorMessage bounds the message carried into per-job errors
	maxErrorMessage = 200
)

// Store is the set of operations the sync engine needs from the external record store
type Store interface {
	LookupByKey(ctx context.Context, collectionID, keyProperty, key string) (RecordID, bool, error)
	Create(ctx context.Context, collectionID string, props Properties) (RecordID, error)
	Update(ctx context.Context, id RecordID, props Properties) error
	ExtractID(url string) (RecordID, error)
}

// Config holds the store client configuration
type Config struct {
	BaseURL    string
	Token      string
	Version    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the record store over its JSON HTTP API
type Client struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Store = (*Client)(nil)

// NewClient creates a new store client
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		version:    version,
		httpClient: httpClient,
		logger:     logger,
	}
}

type pageRef struct {
	ID string `json:"id"`
}

type queryResponse struct {
	Results []pageRef `json:"results"`
}

type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractID implements Store
func (c *Client) ExtractID(url string) (RecordID, error) {
	return ExtractID(url)
}

// LookupByKey queries a collection for a record whose key property equals key
func (c *Client) LookupByKey(ctx context.Context, collectionID, keyProperty, key string) (RecordID, bool, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property":  keyProperty,
			"rich_text": map[string]string{"equals": key},
		},
		"page_size": 1,
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/databases/"+collectionID+"/query", body, &resp); err != nil {
		return "", false, fmt.Errorf("failed to query collection: %w", err)
	}

	if len(resp.Results) == 0 {
		return "", false, nil
	}

	id, err := normalizeID(resp.Results[0].ID)
	if err != nil {
		return "", false, fmt.Errorf("unexpected record id in query result: %w", err)
	}

	return id, true, nil
}

// Create adds a new record under the given collection
func (c *Client) Create(ctx context.Context, collectionID string, props Properties) (RecordID, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": collectionID},
		"properties": props,
	}

	var resp pageRef
	if err := c.do(ctx, http.MethodPost, "/pages", body, &resp); err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}

	id, err := normalizeID(resp.ID)
	if err != nil {
		return "", fmt.Errorf("unexpected record id in create response: %w", err)
	}

	return id, nil
}

// Update patches the properties of an existing record
func (c *Client) Update(ctx context.Context, id RecordID, props Properties) error {
	body := map[string]any{"properties": props}

	if err := c.do(ctx, http.MethodPatch, "/pages/"+id.String(), body, nil); err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}

	return nil
}

// RetrieveCollection returns the display title of a collection
func (c *Client) RetrieveCollection(ctx context.Context, collectionID string) (string, error) {
	var resp struct {
		ID    string `json:"id"`
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
	}

	if err := c.do(ctx, http.MethodGet, "/databases/"+collectionID, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to retrieve collection %s: %w", collectionID, err)
	}

	var title strings.Builder
	for _, t := range resp.Title {
		title.WriteString(t.PlainText)
	}
	if title.Len() == 0 {
		return "Untitled", nil
	}

	return title.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	c.logger.Debug("Store request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", res.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.decodeError(res)
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) decodeError(res *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

	var payload apiError
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		payload.Message = strings.TrimSpace(string(data))
	}

	storeErr := &domain.StoreError{
		StatusCode: res.StatusCode,
		Code:       payload.Code,
		Message:    shorten(payload.Message, maxErrorMessage),
	}

	if res.StatusCode == http.StatusTooManyRequests || payload.Code == rateLimitedCode {
		return &domain.ThrottledError{
			RetryAfter: parseRetryAfter(res.Header.Get("Retry-After"), time.Now()),
			Err:        storeErr,
		}
	}

	return storeErr
}

// shorten cuts s to at most n runes, marking the cut with "..."
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

// parseRetryAfter accepts delay-seconds or an HTTP date; anything else yields zero
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}
