package generator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// templates are the canned replies used when no LLM provider is
// configured. Deterministic per category.
var templates = map[models.Category]string{
	models.CategorySupport: "Thank you for reaching out to our support team. " +
		"We have received your request and a member of our team will get back to you shortly with a solution.",
	models.CategorySales: "Thank you for your interest in our products. " +
		"A member of our sales team will contact you soon with detailed information and pricing.",
	models.CategoryComplaints: "We sincerely apologize for the inconvenience you experienced. " +
		"Your complaint has been escalated and we are committed to resolving it as quickly as possible.",
	models.CategoryFeedback: "Thank you so much for taking the time to share your feedback. " +
		"Input like yours helps us improve our products and services.",
	models.CategoryGeneral: "Thank you for contacting us. " +
		"We have received your message and will respond with the information you need as soon as possible.",
}

// TemplateGenerator produces canned per-category replies without any
// external service.
type TemplateGenerator struct {
	logger *zap.Logger
}

func NewTemplateGenerator(logger *zap.Logger) *TemplateGenerator {
	return &TemplateGenerator{logger: logger}
}

func (g *TemplateGenerator) GenerateResponse(_ context.Context, category models.Category, subject, _ string) (string, error) {
	template, ok := templates[category]
	if !ok {
		template = templates[models.CategoryGeneral]
	}
	return fmt.Sprintf("Re: %s\n\n%s", subject, template), nil
}
