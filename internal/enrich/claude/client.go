// Package claude narrates enriched events through the Anthropic Messages
// API. Transport only; prompt content stays close to the defaults of the
// analyst/dispatcher roles the reports were tuned on.
package claude

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

	"soc-alert-relay-go/internal/enrich"
	"soc-alert-relay-go/internal/model"
)

const (
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	maxRawExcerpt   = 2000
	maxAttempts     = 3
)

const systemPrompt = "You are a SOC security analyst writing Telegram incident reports. " +
	"Assess the real risk of the event and write a concise report. " +
	"Start with a header line `icon | RISK | event type | device` using " +
	"\U0001F534 for HIGH/CRITICAL, \U0001F7E1 for MEDIUM and \U0001F7E2 otherwise. " +
	"Use monospace (backticks) for file paths and hashes. " +
	"If repeats indicate a burst, call out the repetition. Do not invent facts " +
	"that are not in the provided event."

// Client implements enrich.Narrator against the Claude API.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	endpoint   string
	httpClient *http.Client
}

// New creates a new Claude API client with the given API key and model name.
func New(apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	return &Client{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  defaultEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the payload sent to the Claude API.
type Request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// ContentBlock represents a single block of content in a response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Response represents the payload received from the Claude API.
type Response struct {
	ID         string         `json:"id"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage represents the token usage information returned by the Claude API.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Narrate implements enrich.Narrator. Transport failures are retried with
// backoff; API errors are not, the caller falls back to the plain summary
// either way.
func (c *Client) Narrate(ctx context.Context, ev model.NormalizedEvent, cls model.AssetClassification, a enrich.Assessment, repeats int) (string, error) {
	req := &Request{
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []Message{
			{Role: "user", Content: buildPrompt(ev, cls, a, repeats)},
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}

		resp, err := c.send(ctx, req)
		if err != nil {
			lastErr = err
			if isTransportError(err) {
				continue
			}
			return "", err
		}

		text := firstText(resp)
		if text == "" {
			return "", fmt.Errorf("claude response contained no text")
		}
		return text, nil
	}
	return "", fmt.Errorf("claude request failed after %d attempts: %w", maxAttempts, lastErr)
}

// Send sends a request to the Claude API and returns the raw response.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	req.Model = c.model

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("claude api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &out, nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return fmt.Sprintf("send request: %v", e.err) }
func (e *transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func firstText(resp *Response) string {
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text)
		}
	}
	return ""
}

func buildPrompt(ev model.NormalizedEvent, cls model.AssetClassification, a enrich.Assessment, repeats int) string {
	var b strings.Builder
	b.WriteString("Event facts (rule assessment included):\n")
	b.WriteString(enrich.Summary(ev, cls, a, repeats))
	if cls.Owner != "" {
		fmt.Fprintf(&b, "\nOwner: %s", cls.Owner)
	}

	raw := strings.TrimSpace(ev.RawText)
	if raw != "" {
		if len(raw) > maxRawExcerpt {
			raw = raw[:maxRawExcerpt]
		}
		b.WriteString("\n\nOriginal alert excerpt:\n")
		b.WriteString(raw)
	}
	return b.String()
}
