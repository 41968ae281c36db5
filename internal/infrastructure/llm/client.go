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

	"github.com/agenticmap/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client talks to a Groq-compatible (OpenAI chat completions) API.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// Options tunes the client beyond the required key/URL/model triple.
type Options struct {
	Timeout        time.Duration
	RequestsPerMin int
	Logger         *zap.Logger
}

// NewClient creates a new chat completions client.
func NewClient(apiKey, baseURL, model string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	rpm := opts.RequestsPerMin
	if rpm <= 0 {
		rpm = 30
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Free-tier Groq allows ~30 requests/minute; burst of 4 covers one
	// scrape plus one two-sided comparison without waiting.
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 4)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		rateLimiter: limiter,
		logger:      logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one chat completion request and returns the answer text
// with its total token cost. Transient failures are retried up to 3 times
// with linear backoff; 429 is surfaced as domain.ErrLLMRateLimited without
// retrying (the provider's reset window is longer than our backoff).
func (c *Client) Complete(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, payload)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%w: %v", domain.ErrLLMNoResponse, err)
			}
			c.logger.Warn("llm request error",
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = fmt.Errorf("%w: %v", domain.ErrLLMNoResponse, err)
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", domain.ErrLLMRateLimited, string(body))
		}
		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("llm api error",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", body))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrLLMNoResponse, resp.StatusCode)
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		var parsed chatCompletionResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", domain.ErrLLMNoResponse, err)
		}
		if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
			return nil, fmt.Errorf("%w: empty completion", domain.ErrLLMNoResponse)
		}

		c.logger.Debug("llm completion ok",
			zap.Int("total_tokens", parsed.Usage.TotalTokens))

		return &domain.ChatResponse{
			Content:    parsed.Choices[0].Message.Content,
			TokensUsed: parsed.Usage.TotalTokens,
		}, nil
	}

	return nil, lastErr
}

// doRequest executes an HTTP POST to the chat completions endpoint.
func (c *Client) doRequest(ctx context.Context, payload []byte) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.httpClient.Do(req)
}
