// Package llm sends document text to an OpenAI-compatible chat-completion
// endpoint (OpenRouter by default) and hands back the raw response body.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"leanpass/internal/extract"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxRetries     = 2
	maxErrorBody   = 512
)

// RetryBaseDelay is the backoff unit; attempt n waits n times this long.
var RetryBaseDelay = 2 * time.Second

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("completion api is not configured")
	// ErrUpstream wraps every failure to obtain a completion.
	ErrUpstream = errors.New("completion api unavailable")
)

// StatusError is a non-200 answer from the completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion api error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	apiKey  string
	baseURL string
	model   string
	referer string
	title   string
	timeout time.Duration
	http    *http.Client
	prompts *Catalogue
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root, e.g. for testing.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithAttribution sets the HTTP-Referer and X-Title headers OpenRouter uses
// to attribute traffic.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// WithTimeout bounds every attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func WithCatalogue(prompts *Catalogue) Option {
	return func(c *Client) {
		c.prompts = prompts
	}
}

// New creates a completion client. An empty apiKey yields a client whose
// Complete always fails with ErrNotConfigured.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   "nvidia/llama-3.1-nemotron-ultra-253b-v1:free",
		timeout: 2 * time.Minute,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prompts == nil {
		c.prompts = DefaultCatalogue()
	}
	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Model() string {
	return c.model
}

// Complete renders the shape's prompt around text, posts it and returns the
// raw response body. 429 and 5xx answers and transport failures are retried
// with linear backoff; other statuses fail immediately with *StatusError.
func (c *Client) Complete(ctx context.Context, shape extract.Shape, text string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	prompt, err := c.prompts.Render(shape, text)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.prompts.Temperature,
		TopP:        c.prompts.TopP,
		MaxTokens:   c.prompts.MaxTokens(shape),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * RetryBaseDelay):
			}
		}

		respBody, err := c.post(ctx, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUpstream, maxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
