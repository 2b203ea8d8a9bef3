package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

func testExample(key string, category models.Category, source models.ExampleSource) *models.TrainingExample {
	return &models.TrainingExample{
		Key:        key,
		Text:       key,
		Category:   category,
		Confidence: 1.0,
		Source:     source,
	}
}

func TestCorpusUpsertInsertsNewExample(t *testing.T) {
	db := newTestDB(t)
	repo := NewCorpusRepository(db, zap.NewNop())
	ctx := context.Background()

	example := testExample("i need help", models.CategorySupport, models.SourceBootstrap)
	require.NoError(t, repo.Upsert(ctx, example))
	assert.NotZero(t, example.ID)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.CategorySupport, all[0].Category)
	assert.Equal(t, models.SourceBootstrap, all[0].Source)
}

func TestCorpusUpsertDeduplicatesByKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewCorpusRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testExample("same text", models.CategorySupport, models.SourceBootstrap)))
	require.NoError(t, repo.Upsert(ctx, testExample("same text", models.CategorySupport, models.SourceBootstrap)))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFeedbackSupersedesBootstrap(t *testing.T) {
	db := newTestDB(t)
	repo := NewCorpusRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testExample("disputed text", models.CategorySupport, models.SourceBootstrap)))
	require.NoError(t, repo.Upsert(ctx, testExample("disputed text", models.CategorySales, models.SourceFeedback)))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.CategorySales, all[0].Category)
	assert.Equal(t, models.SourceFeedback, all[0].Source)

	// The superseded bootstrap label lands in the history table.
	var historyCount int
	require.NoError(t, db.Get(&historyCount, `SELECT COUNT(*) FROM training_example_history WHERE key = ?`, "disputed text"))
	assert.Equal(t, 1, historyCount)
}

func TestBootstrapNeverDowngradesFeedback(t *testing.T) {
	db := newTestDB(t)
	repo := NewCorpusRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testExample("human label", models.CategorySales, models.SourceFeedback)))

	// A bootstrap re-load with a conflicting label is a no-op.
	reload := testExample("human label", models.CategoryGeneral, models.SourceBootstrap)
	require.NoError(t, repo.Upsert(ctx, reload))
	assert.Equal(t, models.CategorySales, reload.Category)
	assert.Equal(t, models.SourceFeedback, reload.Source)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.CategorySales, all[0].Category)

	var historyCount int
	require.NoError(t, db.Get(&historyCount, `SELECT COUNT(*) FROM training_example_history`))
	assert.Equal(t, 0, historyCount)
}

func TestFeedbackOverridesFeedback(t *testing.T) {
	db := newTestDB(t)
	repo := NewCorpusRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testExample("reconsidered", models.CategorySales, models.SourceFeedback)))
	require.NoError(t, repo.Upsert(ctx, testExample("reconsidered", models.CategoryComplaints, models.SourceFeedback)))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.CategoryComplaints, all[0].Category)
}

func TestCategoryCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewCorpusRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testExample("support one", models.CategorySupport, models.SourceBootstrap)))
	require.NoError(t, repo.Upsert(ctx, testExample("support two", models.CategorySupport, models.SourceBootstrap)))
	require.NoError(t, repo.Upsert(ctx, testExample("sales one", models.CategorySales, models.SourceBootstrap)))

	counts, err := repo.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.CategorySupport])
	assert.Equal(t, 1, counts[models.CategorySales])
	assert.Equal(t, 0, counts[models.CategoryGeneral])
}
