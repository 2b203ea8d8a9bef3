package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

func testVersion(id string) *models.ModelVersion {
	now := time.Now().UTC()
	return &models.ModelVersion{
		VersionID:   id,
		TrainedAt:   now,
		SampleCount: 10,
		PerCategoryCounts: models.CategoryCounts{
			models.CategorySupport: 2,
			models.CategorySales:   2,
		},
		AccuracyEstimate: 0.8,
		CreatedAt:        now,
	}
}

func TestModelVersionActiveBeforeFirstTraining(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelVersionRepository(db, zap.NewNop())

	active, err := repo.Active(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestActivateSwitchesActiveVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelVersionRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, testVersion("v1")))
	require.NoError(t, repo.Activate(ctx, "v1"))

	require.NoError(t, repo.Insert(ctx, testVersion("v2")))
	require.NoError(t, repo.Activate(ctx, "v2"))

	active, err := repo.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "v2", active.VersionID)

	// Exactly one active row, enforced by the partial unique index too.
	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM model_versions WHERE active = 1`))
	assert.Equal(t, 1, count)

	// The previous version stays recorded, just inactive.
	v1, err := repo.Get(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, v1.Active)
}

func TestActivateUnknownVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelVersionRepository(db, zap.NewNop())

	err := repo.Activate(context.Background(), "missing")
	assert.Error(t, err)
}

func TestModelVersionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelVersionRepository(db, zap.NewNop())
	ctx := context.Background()

	version := testVersion("v1")
	require.NoError(t, repo.Insert(ctx, version))

	got, err := repo.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.SampleCount)
	assert.Equal(t, 0.8, got.AccuracyEstimate)
	assert.Equal(t, 2, got.PerCategoryCounts[models.CategorySupport])
}

func TestModelVersionAllIsAppendOnlyHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewModelVersionRepository(db, zap.NewNop())
	ctx := context.Background()

	for _, id := range []string{"v1", "v2", "v3"} {
		version := testVersion(id)
		require.NoError(t, repo.Insert(ctx, version))
		require.NoError(t, repo.Activate(ctx, id))
	}

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
