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

// ErrEmailNotFound is returned when an email id is unknown.
var ErrEmailNotFound = errors.New("email not found")

type EmailRepository interface {
	// Insert stores an email without a dedup guarantee (used for ad-hoc
	// classifications where gmail_id is null).
	Insert(ctx context.Context, email *models.Email) error
	// InsertIfAbsent is the atomic check-and-insert on gmail_id. It
	// reports false without error when a row with the same gmail_id
	// already exists.
	InsertIfAbsent(ctx context.Context, email *models.Email) (bool, error)
	ExistsByGmailID(ctx context.Context, gmailID string) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Email, error)
	GetByIDTx(tx *sqlx.Tx, id int64) (*models.Email, error)
	UpdateClassificationTx(tx *sqlx.Tx, id int64, category models.Category, confidence float64, updatedAt time.Time) error
	List(ctx context.Context, filter models.EmailListFilter) ([]*models.Email, int, error)
	Analytics(ctx context.Context) (*models.Analytics, error)
}

type emailRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewEmailRepository(db *sqlx.DB, logger *zap.Logger) EmailRepository {
	return &emailRepository{db: db, logger: logger}
}

const emailColumns = `id, gmail_id, subject, body, from_email, to_email, category, confidence,
	probabilities, auto_response, classified_by_version_id, created_at, updated_at`

func (r *emailRepository) Insert(ctx context.Context, email *models.Email) error {
	now := time.Now().UTC()
	email.CreatedAt = now
	email.UpdatedAt = now

	query := `INSERT INTO emails (gmail_id, subject, body, from_email, to_email, category, confidence,
		probabilities, auto_response, classified_by_version_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		email.GmailID, email.Subject, email.Body, email.FromEmail, email.ToEmail,
		email.Category, email.Confidence, email.Probabilities, email.AutoResponse,
		email.ClassifiedByVersionID, email.CreatedAt, email.UpdatedAt,
	).Scan(&email.ID)
	if err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

func (r *emailRepository) InsertIfAbsent(ctx context.Context, email *models.Email) (bool, error) {
	now := time.Now().UTC()
	email.CreatedAt = now
	email.UpdatedAt = now

	query := `INSERT INTO emails (gmail_id, subject, body, from_email, to_email, category, confidence,
		probabilities, auto_response, classified_by_version_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(gmail_id) DO NOTHING
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		email.GmailID, email.Subject, email.Body, email.FromEmail, email.ToEmail,
		email.Category, email.Confidence, email.Probabilities, email.AutoResponse,
		email.ClassifiedByVersionID, email.CreatedAt, email.UpdatedAt,
	).Scan(&email.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict: another ingestion of the same gmail_id got there first.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert email: %w", err)
	}
	return true, nil
}

func (r *emailRepository) ExistsByGmailID(ctx context.Context, gmailID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM emails WHERE gmail_id = ?`, gmailID)
	if err != nil {
		return false, fmt.Errorf("failed to check gmail_id: %w", err)
	}
	return count > 0, nil
}

func (r *emailRepository) GetByID(ctx context.Context, id int64) (*models.Email, error) {
	var email models.Email
	err := r.db.GetContext(ctx, &email, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return &email, nil
}

func (r *emailRepository) GetByIDTx(tx *sqlx.Tx, id int64) (*models.Email, error) {
	var email models.Email
	err := tx.Get(&email, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return &email, nil
}

func (r *emailRepository) UpdateClassificationTx(tx *sqlx.Tx, id int64, category models.Category, confidence float64, updatedAt time.Time) error {
	result, err := tx.Exec(`UPDATE emails SET category = ?, confidence = ?, updated_at = ? WHERE id = ?`,
		category, confidence, updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update email classification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEmailNotFound
	}
	return nil
}

func (r *emailRepository) List(ctx context.Context, filter models.EmailListFilter) ([]*models.Email, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}

	where := ""
	args := []interface{}{}
	if filter.Category != nil {
		where = ` WHERE category = ?`
		args = append(args, *filter.Category)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM emails`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count emails: %w", err)
	}

	query := `SELECT ` + emailColumns + ` FROM emails` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	var emails []*models.Email
	if err := r.db.SelectContext(ctx, &emails, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, total, nil
}

func (r *emailRepository) Analytics(ctx context.Context) (*models.Analytics, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT category, COUNT(*), AVG(confidence) FROM emails GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	analytics := &models.Analytics{
		CategoryDistribution: make(map[models.Category]int),
		AverageConfidence:    make(map[models.Category]float64),
		PerCategory:          make(map[models.Category]models.CategoryStats),
	}

	for rows.Next() {
		var category models.Category
		var count int
		var avg float64
		if err := rows.Scan(&category, &count, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}
		analytics.CategoryDistribution[category] = count
		analytics.AverageConfidence[category] = avg
		analytics.PerCategory[category] = models.CategoryStats{Count: count, AvgConfidence: avg}
		analytics.TotalEmails += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analytics rows: %w", err)
	}

	var recent []*models.Email
	err = r.db.SelectContext(ctx, &recent,
		`SELECT `+emailColumns+` FROM emails ORDER BY created_at DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent emails: %w", err)
	}
	analytics.RecentEmails = recent

	return analytics, nil
}
