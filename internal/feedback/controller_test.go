package feedback

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/corpus"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
)

func newTestController(t *testing.T) (*Controller, repository.EmailRepository, *sqlx.DB) {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))

	emails := repository.NewEmailRepository(db, zap.NewNop())
	corpusMgr := corpus.NewManager(repository.NewCorpusRepository(db, zap.NewNop()), zap.NewNop())
	return NewController(db, emails, corpusMgr, zap.NewNop()), emails, db
}

func storedEmail(t *testing.T, emails repository.EmailRepository) *models.Email {
	t.Helper()
	email := &models.Email{
		Subject:    "Quote request",
		Body:       "How much is the enterprise plan",
		Category:   models.CategorySupport,
		Confidence: 0.55,
	}
	require.NoError(t, emails.Insert(context.Background(), email))
	return email
}

func TestSubmitCorrectionUpdatesEmailAndCorpus(t *testing.T) {
	ctrl, emails, db := newTestController(t)
	ctx := context.Background()
	email := storedEmail(t, emails)

	updated, err := ctrl.SubmitCorrection(ctx, email.ID, models.CategorySales, 1.0)
	require.NoError(t, err)
	assert.Equal(t, models.CategorySales, updated.Category)
	assert.Equal(t, 1.0, updated.Confidence)

	got, err := emails.GetByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategorySales, got.Category)
	assert.Equal(t, 1.0, got.Confidence)

	var source string
	var category string
	require.NoError(t, db.QueryRow(`SELECT source, category FROM training_examples`).Scan(&source, &category))
	assert.Equal(t, string(models.SourceFeedback), source)
	assert.Equal(t, string(models.CategorySales), category)
}

func TestSubmitCorrectionUnknownEmail(t *testing.T) {
	ctrl, _, db := newTestController(t)

	_, err := ctrl.SubmitCorrection(context.Background(), 9999, models.CategorySales, 1.0)
	assert.ErrorIs(t, err, repository.ErrEmailNotFound)

	// No half-applied write: the corpus stays empty.
	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM training_examples`))
	assert.Equal(t, 0, count)
}

func TestSubmitCorrectionInvalidCategory(t *testing.T) {
	ctrl, emails, _ := newTestController(t)
	email := storedEmail(t, emails)

	_, err := ctrl.SubmitCorrection(context.Background(), email.ID, models.Category("Spam"), 1.0)
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestSubmitCorrectionInvalidConfidence(t *testing.T) {
	ctrl, emails, _ := newTestController(t)
	email := storedEmail(t, emails)

	for _, confidence := range []float64{-0.1, 1.1} {
		_, err := ctrl.SubmitCorrection(context.Background(), email.ID, models.CategorySales, confidence)
		assert.ErrorIs(t, err, ErrInvalidConfidence)
	}
}

func TestRepeatedCorrectionsKeepSingleCorpusEntry(t *testing.T) {
	ctrl, emails, db := newTestController(t)
	ctx := context.Background()
	email := storedEmail(t, emails)

	_, err := ctrl.SubmitCorrection(ctx, email.ID, models.CategorySales, 1.0)
	require.NoError(t, err)
	_, err = ctrl.SubmitCorrection(ctx, email.ID, models.CategoryComplaints, 1.0)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM training_examples`))
	assert.Equal(t, 1, count)

	var category string
	require.NoError(t, db.QueryRow(`SELECT category FROM training_examples`).Scan(&category))
	assert.Equal(t, string(models.CategoryComplaints), category)

	got, err := emails.GetByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryComplaints, got.Category)
}
