package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// GeminiClient generates reply text through the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	modelName  string
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

func NewGeminiClient(cfg Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash-exp"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.Info("Gemini generator initialized", zap.String("model", cfg.ModelName))

	return &GeminiClient{
		client:     client,
		modelName:  cfg.ModelName,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: 2 * time.Second,
	}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) GenerateResponse(ctx context.Context, category models.Category, subject, body string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(category))},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.7),
		MaxOutputTokens: genai.Ptr[int32](300),
	}

	prompt := buildUserPrompt(category, subject, body)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from gemini")
			continue
		}

		textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			lastErr = fmt.Errorf("unexpected response type from gemini")
			continue
		}

		text := strings.TrimSpace(string(textPart))
		if text == "" {
			lastErr = fmt.Errorf("blank completion from gemini")
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
