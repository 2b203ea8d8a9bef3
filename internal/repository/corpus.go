package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// CorpusRepository handles database operations for the training corpus.
// Examples are never deleted; superseding copies the previous version to
// the history table for audit.
type CorpusRepository interface {
	Upsert(ctx context.Context, example *models.TrainingExample) error
	UpsertTx(tx *sqlx.Tx, example *models.TrainingExample) error
	All(ctx context.Context) ([]*models.TrainingExample, error)
	CategoryCounts(ctx context.Context) (models.CategoryCounts, error)
}

type corpusRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCorpusRepository(db *sqlx.DB, logger *zap.Logger) CorpusRepository {
	return &corpusRepository{db: db, logger: logger}
}

func (r *corpusRepository) Upsert(ctx context.Context, example *models.TrainingExample) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.UpsertTx(tx, example); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *corpusRepository) UpsertTx(tx *sqlx.Tx, example *models.TrainingExample) error {
	now := time.Now().UTC()

	var existing models.TrainingExample
	err := tx.Get(&existing,
		`SELECT id, key, text, category, confidence, source, created_at, updated_at
		 FROM training_examples WHERE key = ?`, example.Key)
	if errors.Is(err, sql.ErrNoRows) {
		example.CreatedAt = now
		example.UpdatedAt = now
		err = tx.QueryRowx(
			`INSERT INTO training_examples (key, text, category, confidence, source, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			example.Key, example.Text, example.Category, example.Confidence,
			example.Source, example.CreatedAt, example.UpdatedAt,
		).Scan(&example.ID)
		if err != nil {
			return fmt.Errorf("failed to insert training example: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up training example: %w", err)
	}

	// Feedback is sticky: a bootstrap re-load never downgrades a human label.
	if existing.Source == models.SourceFeedback && example.Source == models.SourceBootstrap {
		*example = existing
		return nil
	}

	_, err = tx.Exec(
		`INSERT INTO training_example_history (example_id, key, text, category, confidence, source, superseded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		existing.ID, existing.Key, existing.Text, existing.Category,
		existing.Confidence, existing.Source, now)
	if err != nil {
		return fmt.Errorf("failed to archive superseded example: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE training_examples SET category = ?, confidence = ?, source = ?, updated_at = ? WHERE id = ?`,
		example.Category, example.Confidence, example.Source, now, existing.ID)
	if err != nil {
		return fmt.Errorf("failed to update training example: %w", err)
	}

	example.ID = existing.ID
	example.CreatedAt = existing.CreatedAt
	example.UpdatedAt = now
	return nil
}

func (r *corpusRepository) All(ctx context.Context) ([]*models.TrainingExample, error) {
	var examples []*models.TrainingExample
	err := r.db.SelectContext(ctx, &examples,
		`SELECT id, key, text, category, confidence, source, created_at, updated_at
		 FROM training_examples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	return examples, nil
}

func (r *corpusRepository) CategoryCounts(ctx context.Context) (models.CategoryCounts, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT category, COUNT(*) FROM training_examples GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count corpus categories: %w", err)
	}
	defer rows.Close()

	counts := make(models.CategoryCounts)
	for rows.Next() {
		var category models.Category
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[category] = count
	}
	return counts, rows.Err()
}
