package generator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/ingest"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// ErrUnavailable marks generation failures from the LLM provider. The
// ingestion pipeline degrades to a null auto-response in that case.
var ErrUnavailable = errors.New("response generator unavailable")

// systemPrompts carries the per-category voice for generated replies.
var systemPrompts = map[models.Category]string{
	models.CategorySupport: "You are a professional customer support representative. " +
		"Generate a helpful, empathetic response to customer support inquiries. " +
		"Be specific, offer solutions, and maintain a professional yet friendly tone.",
	models.CategorySales: "You are a professional sales representative. " +
		"Generate an engaging, informative response to sales inquiries. " +
		"Highlight benefits, provide relevant information, and encourage further engagement.",
	models.CategoryComplaints: "You are a professional customer service representative handling complaints. " +
		"Generate an empathetic, apologetic response that acknowledges the issue and shows commitment to resolution. " +
		"Be understanding and offer concrete next steps.",
	models.CategoryFeedback: "You are a professional representative responding to customer feedback. " +
		"Generate a grateful, appreciative response that shows you value their input. " +
		"Acknowledge their feedback and mention how it helps improve your service.",
	models.CategoryGeneral: "You are a professional representative responding to general inquiries. " +
		"Generate a helpful, informative response that addresses their question clearly. " +
		"Be friendly, professional, and provide useful information.",
}

func systemPrompt(category models.Category) string {
	if prompt, ok := systemPrompts[category]; ok {
		return prompt
	}
	return systemPrompts[models.CategoryGeneral]
}

func buildUserPrompt(category models.Category, subject, body string) string {
	return fmt.Sprintf(`Please generate a professional email response to the following customer email:

Subject: %s

Customer Email:
%s

Category: %s

Requirements:
- Keep the response under 150 words
- Be professional yet friendly
- Address the customer's specific concerns
- Offer helpful solutions or information
- Maintain the appropriate tone for %s emails

Please provide only the response text, no additional formatting.`, subject, body, category, category)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string // "openrouter", "gemini" or "template"
	APIKey     string
	ModelName  string
	MaxRetries int
}

// New builds the configured provider. With no API key the deterministic
// template provider is used, so the system works without credentials.
func New(cfg Config, logger *zap.Logger) (ingest.Generator, error) {
	switch cfg.Provider {
	case "openrouter":
		return NewOpenRouterClient(cfg, logger)
	case "gemini":
		return NewGeminiClient(cfg, logger)
	case "", "template":
		return NewTemplateGenerator(logger), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}
