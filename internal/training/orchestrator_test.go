package training

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/classifier"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/corpus"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
)

type testEnv struct {
	db         *sqlx.DB
	corpus     *corpus.Manager
	versions   repository.ModelVersionRepository
	classifier *classifier.Service
	trainer    *Orchestrator
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))

	corpusMgr := corpus.NewManager(repository.NewCorpusRepository(db, zap.NewNop()), zap.NewNop())
	versions := repository.NewModelVersionRepository(db, zap.NewNop())
	classifierSvc := classifier.NewService(zap.NewNop())

	return &testEnv{
		db:         db,
		corpus:     corpusMgr,
		versions:   versions,
		classifier: classifierSvc,
		trainer:    NewOrchestrator(corpusMgr, versions, classifierSvc, cfg, zap.NewNop()),
	}
}

func seedAllCategories(t *testing.T, env *testEnv, perCategory int) {
	t.Helper()
	ctx := context.Background()

	texts := map[models.Category][]string{
		models.CategorySupport:    {"i need help with my order", "my account is locked please help", "the app keeps crashing help me"},
		models.CategorySales:      {"send me a quote for the enterprise plan", "interested in buying one hundred licenses", "what is the price of the premium plan"},
		models.CategoryComplaints: {"this is unacceptable i demand a refund", "worst service ever i am furious", "the item arrived broken again"},
		models.CategoryFeedback:   {"love the new dashboard great work", "please add a dark mode option", "the latest update is wonderful"},
		models.CategoryGeneral:    {"are you available for a call tuesday", "the office is closed friday", "monthly newsletter with company updates"},
	}
	for category, categoryTexts := range texts {
		require.GreaterOrEqual(t, len(categoryTexts), perCategory)
		for i := 0; i < perCategory; i++ {
			require.NoError(t, env.corpus.AddExample(ctx, "", categoryTexts[i], category, 1.0, models.SourceBootstrap))
		}
	}
}

func TestRetrainWithEmptyCorpus(t *testing.T) {
	env := newTestEnv(t, Config{})

	_, err := env.trainer.Retrain(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, env.classifier.Ready())

	active, aerr := env.versions.Active(context.Background())
	require.NoError(t, aerr)
	assert.Nil(t, active)
}

func TestRetrainWithSingleCategoryKeepsServingModel(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedAllCategories(t, env, 2)

	first, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)

	// Wipe everything but Support; the next retrain must refuse and keep
	// the current model serving.
	_, err = env.db.Exec(`DELETE FROM training_examples WHERE category != ?`, models.CategorySupport)
	require.NoError(t, err)

	_, err = env.trainer.Retrain(ctx)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, first.VersionID, env.classifier.ActiveVersion())

	active, err := env.versions.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.VersionID, active.VersionID)
}

func TestRetrainWithOneThinCategory(t *testing.T) {
	env := newTestEnv(t, Config{MinExamplesPerCategory: 2})
	ctx := context.Background()

	seedAllCategories(t, env, 2)
	// Push General below the minimum by replacing its rows with just one.
	_, err := env.db.Exec(`DELETE FROM training_examples WHERE category = ?`, models.CategoryGeneral)
	require.NoError(t, err)
	require.NoError(t, env.corpus.AddExample(ctx, "", "single general example", models.CategoryGeneral, 1.0, models.SourceBootstrap))

	_, err = env.trainer.Retrain(ctx)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "General")
}

func TestRetrainActivatesNewVersion(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedAllCategories(t, env, 2)

	version, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)
	assert.True(t, version.Active)
	assert.Equal(t, 10, version.SampleCount)
	assert.Equal(t, 2, version.PerCategoryCounts[models.CategorySupport])
	assert.GreaterOrEqual(t, version.AccuracyEstimate, 0.0)
	assert.LessOrEqual(t, version.AccuracyEstimate, 1.0)

	active, err := env.versions.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, version.VersionID, active.VersionID)
	assert.Equal(t, version.VersionID, env.classifier.ActiveVersion())

	prediction, err := env.classifier.Predict("Order Issue", "I need help with my order")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySupport, prediction.Category)
	assert.GreaterOrEqual(t, prediction.Confidence, 0.5)
}

func TestRetrainAppendsVersions(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedAllCategories(t, env, 2)

	first, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)
	second, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.VersionID, second.VersionID)

	all, err := env.versions.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	var activeCount int
	require.NoError(t, env.db.Get(&activeCount, `SELECT COUNT(*) FROM model_versions WHERE active = 1`))
	assert.Equal(t, 1, activeCount)
	assert.Equal(t, second.VersionID, env.classifier.ActiveVersion())
}

func TestRetrainCanceledContextKeepsPreviousModel(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedAllCategories(t, env, 2)

	first, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = env.trainer.Retrain(canceled)
	assert.ErrorIs(t, err, ErrTraining)

	// The previous version keeps serving.
	assert.Equal(t, first.VersionID, env.classifier.ActiveVersion())
	active, err := env.versions.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.VersionID, active.VersionID)
}

func TestRetrainWritesSnapshot(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "model.json")
	env := newTestEnv(t, Config{SnapshotPath: snapshotPath})
	ctx := context.Background()
	seedAllCategories(t, env, 2)

	version, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)

	versionID, model, err := classifier.LoadSnapshot(snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, version.VersionID, versionID)
	assert.NotNil(t, model)
}

func TestAccuracyEstimateIsDeterministic(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedAllCategories(t, env, 3)

	first, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)
	second, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.AccuracyEstimate, second.AccuracyEstimate)
}

func TestFeedbackThenRetrainChangesPrediction(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	seedAllCategories(t, env, 2)

	_, err := env.trainer.Retrain(ctx)
	require.NoError(t, err)

	// A human relabels a seed text; the next retrain picks it up.
	target := "send me a quote for the enterprise plan"
	require.NoError(t, env.corpus.AddExample(ctx, "", target, models.CategoryComplaints, 1.0, models.SourceFeedback))

	before, err := env.classifier.Predict("", target)
	require.NoError(t, err)
	assert.Equal(t, models.CategorySales, before.Category)

	_, err = env.trainer.Retrain(ctx)
	require.NoError(t, err)

	after, err := env.classifier.Predict("", target)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryComplaints, after.Category)
}
