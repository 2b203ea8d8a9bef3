package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// OpenRouterClient generates reply text through the OpenRouter chat
// completions API.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func NewOpenRouterClient(cfg Config, logger *zap.Logger) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "meta-llama/llama-3.2-3b-instruct:free"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		baseURL:    "https://openrouter.ai/api/v1",
		modelName:  cfg.ModelName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: 2 * time.Second,
	}, nil
}

func (c *OpenRouterClient) GenerateResponse(ctx context.Context, category models.Category, subject, body string) (string, error) {
	reqBody := openRouterRequest{
		Model: c.modelName,
		Messages: []openRouterMessage{
			{Role: "system", Content: systemPrompt(category)},
			{Role: "user", Content: buildUserPrompt(category, subject, body)},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying OpenRouter request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		text, err := c.complete(ctx, reqBody)
		if err != nil {
			lastErr = err
			c.logger.Error("OpenRouter API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *OpenRouterClient) complete(ctx context.Context, reqBody openRouterRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openrouter returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("openrouter error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty response from openrouter")
	}

	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("blank completion from openrouter")
	}
	return text, nil
}
