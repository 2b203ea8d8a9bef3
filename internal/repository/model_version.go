package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// ModelVersionRepository handles the append-only model version table.
// Rows are deactivated, never mutated after creation beyond the active flag.
type ModelVersionRepository interface {
	Insert(ctx context.Context, version *models.ModelVersion) error
	// Activate marks the given version active and the previous active
	// version inactive in a single transaction.
	Activate(ctx context.Context, versionID string) error
	Get(ctx context.Context, versionID string) (*models.ModelVersion, error)
	// Active returns the currently active version, or nil before first training.
	Active(ctx context.Context) (*models.ModelVersion, error)
	All(ctx context.Context) ([]*models.ModelVersion, error)
}

type modelVersionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewModelVersionRepository(db *sqlx.DB, logger *zap.Logger) ModelVersionRepository {
	return &modelVersionRepository{db: db, logger: logger}
}

const versionColumns = `version_id, trained_at, sample_count, per_category_counts, accuracy_estimate, active, created_at`

func (r *modelVersionRepository) Insert(ctx context.Context, version *models.ModelVersion) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO model_versions (version_id, trained_at, sample_count, per_category_counts, accuracy_estimate, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		version.VersionID, version.TrainedAt, version.SampleCount,
		version.PerCategoryCounts, version.AccuracyEstimate, version.Active, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model version: %w", err)
	}
	return nil
}

func (r *modelVersionRepository) Activate(ctx context.Context, versionID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE model_versions SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("failed to deactivate previous version: %w", err)
	}

	result, err := tx.Exec(`UPDATE model_versions SET active = 1 WHERE version_id = ?`, versionID)
	if err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("model version %s not found", versionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

func (r *modelVersionRepository) Get(ctx context.Context, versionID string) (*models.ModelVersion, error) {
	var version models.ModelVersion
	err := r.db.GetContext(ctx, &version,
		`SELECT `+versionColumns+` FROM model_versions WHERE version_id = ?`, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model version %s not found", versionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model version: %w", err)
	}
	return &version, nil
}

func (r *modelVersionRepository) Active(ctx context.Context) (*models.ModelVersion, error) {
	var version models.ModelVersion
	err := r.db.GetContext(ctx, &version,
		`SELECT `+versionColumns+` FROM model_versions WHERE active = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active model version: %w", err)
	}
	return &version, nil
}

func (r *modelVersionRepository) All(ctx context.Context) ([]*models.ModelVersion, error) {
	var versions []*models.ModelVersion
	err := r.db.SelectContext(ctx, &versions,
		`SELECT `+versionColumns+` FROM model_versions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	return versions, nil
}
