// Package notion is a minimal client for the parts of the Notion REST API the
// daemon touches: webhook payload parsing and page property writeback.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrMissingKey indicates the API key was not configured.
var ErrMissingKey = errors.New("NOTION_API_KEY is not set")

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Notion REST API with client-side rate limiting.
// Notion documents an average of 3 requests per second per integration.
type Client struct {
	base    string
	key     string
	version string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client. base defaults to the public API when empty.
func New(base, key, version string) *Client {
	if base == "" {
		base = "https://api.notion.com"
	}
	if version == "" {
		version = "2022-06-28"
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		version: version,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(3), 3),
	}
}

// UpdateRichText PATCHes a rich_text property on the given page.
func (c *Client) UpdateRichText(ctx context.Context, pageID, property, text string) error {
	if c.key == "" {
		return ErrMissingKey
	}

	payload := map[string]any{
		"properties": map[string]any{
			property: map[string]any{
				"rich_text": []RichTextSpan{
					{Type: "text", Text: &TextBody{Content: text}},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode page update: %w", err)
	}

	res, err := c.patch(ctx, "/v1/pages/"+pageID, body)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusTooManyRequests {
		drain(res)
		if err := c.backoff(ctx, res); err != nil {
			return err
		}
		res, err = c.patch(ctx, "/v1/pages/"+pageID, body)
		if err != nil {
			return err
		}
	}
	defer drain(res)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &APIError{StatusCode: res.StatusCode, Body: string(snippet)}
	}
	return nil
}

func (c *Client) patch(ctx context.Context, path string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// backoff waits out a 429 using Retry-After when the server provides one.
func (c *Client) backoff(ctx context.Context, res *http.Response) error {
	wait := time.Second
	if ra := res.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	_ = res.Body.Close()
}
