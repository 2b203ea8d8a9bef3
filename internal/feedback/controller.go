package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/corpus"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
)

var (
	// ErrInvalidCategory is returned for categories outside the taxonomy.
	ErrInvalidCategory = errors.New("unknown category")
	// ErrInvalidConfidence is returned when confidence is outside [0,1].
	ErrInvalidConfidence = errors.New("confidence out of range [0,1]")
)

// Controller receives human corrections. It is the only writer of
// post-creation email classification changes. A correction never
// triggers retraining by itself; retraining stays an explicit operation.
type Controller struct {
	db     *sqlx.DB
	emails repository.EmailRepository
	corpus *corpus.Manager
	logger *zap.Logger
}

func NewController(db *sqlx.DB, emails repository.EmailRepository, corpusMgr *corpus.Manager, logger *zap.Logger) *Controller {
	return &Controller{db: db, emails: emails, corpus: corpusMgr, logger: logger}
}

// SubmitCorrection overwrites the email's category/confidence and adds a
// feedback example to the corpus, atomically as one unit. Returns the
// updated email, or repository.ErrEmailNotFound for unknown ids.
func (c *Controller) SubmitCorrection(ctx context.Context, emailID int64, category models.Category, confidence float64) (*models.Email, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfidence, confidence)
	}

	// The single write transaction is also the serialization point for
	// concurrent corrections on the same email id.
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	email, err := c.emails.GetByIDTx(tx, emailID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := c.emails.UpdateClassificationTx(tx, emailID, category, confidence, now); err != nil {
		return nil, err
	}

	if err := c.corpus.AddExampleTx(tx, email.Subject, email.Body, category, confidence, models.SourceFeedback); err != nil {
		return nil, fmt.Errorf("failed to add feedback example: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit correction: %w", err)
	}

	email.Category = category
	email.Confidence = confidence
	email.UpdatedAt = now

	c.logger.Info("Correction applied",
		zap.Int64("email_id", emailID),
		zap.String("category", string(category)),
		zap.Float64("confidence", confidence))
	return email, nil
}
