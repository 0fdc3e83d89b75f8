package analyzer

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

	"github.com/cenkalti/backoff/v4"
)

// ChatCompleter is the generative-text collaborator contract: a prompt in, a
// raw text response out. Failures surface as errors the Analyzer must catch.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientConfig configures the chat-completions client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	// RequestTimeout bounds a single completion call so a hung provider
	// cannot hold a webhook request open indefinitely.
	RequestTimeout time.Duration

	// MaxRetryElapsed bounds the total retry window for transient failures.
	MaxRetryElapsed time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	out := c
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = 15 * time.Second
	}
	if out.MaxRetryElapsed <= 0 {
		out.MaxRetryElapsed = 30 * time.Second
	}
	return out
}

// Client calls an OpenAI-compatible chat-completions endpoint.
//
// It is constructed once at startup and injected, so a missing credential is
// a boot-time configuration error rather than a first-request surprise.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("analyzer: base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("analyzer: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("analyzer: model is required")
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// Complete sends the prompt and returns the raw message content. Transport
// errors and 5xx responses are retried with exponential backoff inside the
// configured window; 4xx responses fail immediately.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	payload := map[string]any{
		"model":       c.cfg.Model,
		"temperature": 0.2,
		"response_format": map[string]string{
			"type": "json_object",
		},
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var content string
	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return retryableError{err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return retryableError{fmt.Errorf("completion status %d: %s", resp.StatusCode, string(b))}
		}
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return backoff.Permanent(fmt.Errorf("completion status %d: %s", resp.StatusCode, string(b)))
		}

		var wrapper struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
			return backoff.Permanent(err)
		}
		if len(wrapper.Choices) == 0 {
			return backoff.Permanent(errors.New("empty completion response"))
		}
		content = strings.TrimSpace(wrapper.Choices[0].Message.Content)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return content, nil
}
