// Package research generates company summaries via the OpenAI Responses API
// with the web_search tool enabled.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingKey indicates the API key was not configured.
var ErrMissingKey = errors.New("OPENAI_API_KEY is not set")

// ErrEmptyOutput indicates the model returned no usable text.
var ErrEmptyOutput = errors.New("empty model output")

// APIError is a non-2xx response from the OpenAI API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Body)
}

// Client calls the Responses API.
type Client struct {
	base  string
	key   string
	model string
	http  *http.Client
}

// New creates a client. base defaults to the public API when empty; web
// searches plus summarization routinely take tens of seconds, hence the
// generous timeout.
func New(base, key, model string) *Client {
	if base == "" {
		base = "https://api.openai.com"
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		key:   key,
		model: model,
		http:  &http.Client{Timeout: 120 * time.Second},
	}
}

type request struct {
	Model string `json:"model"`
	Tools []tool `json:"tools"`
	Input string `json:"input"`
}

type tool struct {
	Type string `json:"type"`
}

// response covers both the SDK-style aggregated output_text and the raw
// output item list; servers may emit either.
type response struct {
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Summarize asks the model to research the company and returns the summary text.
func (c *Client) Summarize(ctx context.Context, company, website string) (string, error) {
	if c.key == "" {
		return "", ErrMissingKey
	}

	body, err := json.Marshal(request{
		Model: c.model,
		Tools: []tool{{Type: "web_search"}},
		Input: BuildPrompt(company, website),
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", &APIError{StatusCode: res.StatusCode, Body: string(snippet)}
	}

	var parsed response
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text := parsed.text()
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}

// text returns the aggregated output_text when present, otherwise walks the
// output items for message text parts.
func (r *response) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

// BuildPrompt renders the analyst prompt. Unknown fields are marked (不明) so
// the model states uncertainty rather than inventing a company.
func BuildPrompt(company, website string) string {
	if company == "" {
		company = "(不明)"
	}
	if website == "" {
		website = "(不明)"
	}
	return strings.TrimSpace(fmt.Sprintf(`
あなたは企業調査アナリストです。
次の企業について、最新のWeb情報を検索して事業内容を日本語で簡潔に要約してください。

- 企業名: %s
- Website: %s

出力フォーマット:
- 事業概要（2〜4文）
- 主な提供価値/顧客（箇条書き 2〜4個）
- 補足（あれば：資金調達/主要プロダクト/対象市場など 1〜2行）

注意:
- 不確かな情報は「可能性がある」など断定を避ける
- Website がある場合はまずそれを起点に企業を特定する
`, company, website))
}
