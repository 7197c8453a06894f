package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Defaults for Options left zero.
const (
	DefaultBaseURL      = "https://api.x.ai/v1"
	DefaultModel        = "grok-3-mini"
	DefaultTimeout      = 30 * time.Second
	DefaultAttempts     = 3
	DefaultRetryBackoff = 2 * time.Second
)

// Options configures Client.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration // per attempt
	Attempts     int
	RetryBackoff time.Duration // doubled after each failed attempt
}

// Client implements Engine on the chat completions API.
type Client struct {
	client   osdk.Client
	model    string
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// New builds a Client. The SDK's own retries are disabled; Client retries
// with its own bounded backoff.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("answer: api key is required")
	}
	c := &Client{
		model:    opts.Model,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		backoff:  opts.RetryBackoff,
		sleep:    sleepCtx,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.attempts <= 0 {
		c.attempts = DefaultAttempts
	}
	if c.backoff <= 0 {
		c.backoff = DefaultRetryBackoff
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c.client = osdk.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return c, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func answerLogger() *slog.Logger {
	return slog.Default().With("component", "answer")
}

// complete sends one user prompt and returns the trimmed reply text.
func (c *Client) complete(ctx context.Context, op, prompt string) (string, error) {
	log := answerLogger().With("operation", op)
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		startedAt := time.Now()
		text, err := c.completeOnce(ctx, prompt)
		if err == nil {
			log.Debug("completion done", "attempt", attempt, "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) || attempt == c.attempts {
			break
		}
		log.Warn("completion failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if err := c.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", fmt.Errorf("%s: %w", op, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model:    osdk.ChatModel(c.model),
		Messages: []osdk.ChatCompletionMessageParamUnion{osdk.UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("completion returned empty content")
	}
	return text, nil
}

// retryable reports whether err is a timeout, a transport failure, a rate
// limit or a server error.
func retryable(err error) bool {
	var apiErr *osdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) Classify(ctx context.Context, query string) (Scope, error) {
	text, err := c.complete(ctx, "classify", classifyPrompt(query))
	if err != nil {
		return ScopeGlobal, err
	}
	switch strings.Trim(strings.ToLower(text), " .'\"") {
	case string(ScopePersonal):
		return ScopePersonal, nil
	default:
		return ScopeGlobal, nil
	}
}

func (c *Client) Interpret(ctx context.Context, query string) (string, error) {
	text, err := c.complete(ctx, "interpret", interpretPrompt(query))
	if err != nil {
		return query, err
	}
	return strings.Trim(text, "'\""), nil
}

func (c *Client) Select(ctx context.Context, query string, cands []Candidate, max int) ([]string, error) {
	if len(cands) == 0 {
		return nil, nil
	}
	text, err := c.complete(ctx, "select", selectPrompt(query, cands, max))
	if err != nil {
		return nil, err
	}
	keys, err := parseSelection(text, cands, max)
	if err != nil {
		return nil, fmt.Errorf("select: unparseable reply: %w", err)
	}
	answerLogger().Debug("documents selected", "count", len(keys), "keys", keys)
	return keys, nil
}

func (c *Client) Summarize(ctx context.Context, query, key, title, content string) Summary {
	text, err := c.complete(ctx, "summarize", summarizePrompt(query, title, content))
	if err != nil {
		answerLogger().Warn("summary failed", "key", key, "error", err)
		return Summary{
			Key:       key,
			Title:     title,
			Text:      fmt.Sprintf("**%s** - Error: Summary failed.", title),
			Relevance: RelevanceUnknown,
			Failed:    true,
		}
	}
	text, rel := cleanSummary(text)
	return Summary{Key: key, Title: title, Text: text, Relevance: rel}
}
