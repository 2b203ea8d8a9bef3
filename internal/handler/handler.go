package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/classifier"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/feedback"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/ingest"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/training"
)

// Config carries the auto-response policy for ad-hoc classifications.
type Config struct {
	ConfidenceThreshold float64
	AutoResponseEnabled bool
}

// Handler serves the HTTP API.
type Handler struct {
	classifier *classifier.Service
	emails     repository.EmailRepository
	feedback   *feedback.Controller
	trainer    *training.Orchestrator
	pipeline   *ingest.Pipeline
	generator  ingest.Generator // may be nil when response generation is disabled
	cfg        Config
	logger     *zap.Logger
}

func NewHandler(
	classifierSvc *classifier.Service,
	emails repository.EmailRepository,
	feedbackCtrl *feedback.Controller,
	trainer *training.Orchestrator,
	pipeline *ingest.Pipeline,
	responder ingest.Generator,
	cfg Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		classifier: classifierSvc,
		emails:     emails,
		feedback:   feedbackCtrl,
		trainer:    trainer,
		pipeline:   pipeline,
		generator:  responder,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/classify", h.Classify)
		api.GET("/emails", h.ListEmails)
		api.PUT("/emails/:id", h.CorrectEmail)
		api.GET("/analytics", h.Analytics)
		api.POST("/gmail/fetch", h.FetchGmail)
		api.POST("/model/retrain", h.Retrain)
	}
}

// Health handles GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"model_ready": h.classifier.Ready(),
	})
}

type classifyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
}

// Classify handles POST /api/classify. The text is classified, given an
// auto-response when confident enough, and stored like any other email,
// just without a gmail_id.
func (h *Handler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	prediction, err := h.classifier.Predict(req.Subject, req.Body)
	if err != nil {
		if errors.Is(err, classifier.ErrModelNotReady) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model is not trained yet"})
			return
		}
		h.logger.Error("Classification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
		return
	}

	// Generation failures degrade to a null auto_response; the
	// classification is stored either way.
	var autoResponse *string
	if h.cfg.AutoResponseEnabled && h.generator != nil && prediction.Confidence >= h.cfg.ConfidenceThreshold {
		genCtx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		text, err := h.generator.GenerateResponse(genCtx, prediction.Category, req.Subject, req.Body)
		cancel()
		if err != nil {
			h.logger.Warn("Response generation failed, storing without auto-response", zap.Error(err))
		} else {
			autoResponse = &text
		}
	}

	email := &models.Email{
		Subject:               req.Subject,
		Body:                  req.Body,
		Category:              prediction.Category,
		Confidence:            prediction.Confidence,
		Probabilities:         prediction.Probabilities,
		AutoResponse:          autoResponse,
		ClassifiedByVersionID: &prediction.VersionID,
	}
	if err := h.emails.Insert(c.Request.Context(), email); err != nil {
		h.logger.Error("Failed to store classified email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email_id":      email.ID,
		"category":      prediction.Category,
		"confidence":    prediction.Confidence,
		"probabilities": prediction.Probabilities,
		"auto_response": email.AutoResponse,
		"model_version": prediction.VersionID,
	})
}

// ListEmails handles GET /api/emails with optional paging and category filter.
func (h *Handler) ListEmails(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil || perPage < 1 || perPage > 100 {
		perPage = 20
	}

	filter := models.EmailListFilter{
		Page:    page,
		PerPage: perPage,
	}
	if raw := c.Query("category"); raw != "" {
		category, err := models.ParseCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		filter.Category = &category
	}

	emails, total, err := h.emails.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list emails", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list emails"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"emails":   emails,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

type correctRequest struct {
	Category   string   `json:"category" binding:"required"`
	Confidence *float64 `json:"confidence"`
}

// CorrectEmail handles PUT /api/emails/:id. A human correction overrides
// the stored classification and feeds the training corpus.
func (h *Handler) CorrectEmail(c *gin.Context) {
	var req correctRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category is required"})
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	email, err := h.feedback.SubmitCorrection(c.Request.Context(), id, category, confidence)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		case errors.Is(err, feedback.ErrInvalidConfidence):
			c.JSON(http.StatusBadRequest, gin.H{"error": "confidence must be between 0 and 1"})
		default:
			h.logger.Error("Failed to apply correction", zap.Error(err), zap.Int64("email_id", id))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply correction"})
		}
		return
	}

	c.JSON(http.StatusOK, email)
}

// Analytics handles GET /api/analytics
func (h *Handler) Analytics(c *gin.Context) {
	analytics, err := h.emails.Analytics(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute analytics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// FetchGmail handles POST /api/gmail/fetch, triggering one ingestion cycle.
func (h *Handler) FetchGmail(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gmail integration is disabled"})
		return
	}

	results, err := h.pipeline.RunOnce(c.Request.Context())
	if err != nil {
		h.logger.Error("Gmail fetch failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed": len(results),
		"results":   results,
	})
}

// Retrain handles POST /api/model/retrain
func (h *Handler) Retrain(c *gin.Context) {
	version, err := h.trainer.Retrain(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, training.ErrInsufficientData):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, training.ErrTraining):
			h.logger.Error("Retraining failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "training failed, previous model still active"})
		default:
			h.logger.Error("Retraining failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "training failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version_id":         version.VersionID,
		"sample_count":       version.SampleCount,
		"accuracy_estimate":  version.AccuracyEstimate,
		"per_category_count": version.PerCategoryCounts,
		"trained_at":         version.TrainedAt,
	})
}
