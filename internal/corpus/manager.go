package corpus

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/classifier"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
)

// Manager owns the deduplicated, versioned set of labeled examples used
// to fit a classifier. It is the only writer of training examples.
type Manager struct {
	repo   repository.CorpusRepository
	logger *zap.Logger
}

func NewManager(repo repository.CorpusRepository, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, logger: logger}
}

func (m *Manager) buildExample(subject, text string, category models.Category, confidence float64, source models.ExampleSource) (*models.TrainingExample, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	key := classifier.Normalize(subject + " " + text)
	if key == "" {
		return nil, fmt.Errorf("training example text is empty")
	}

	return &models.TrainingExample{
		Key:        key,
		Text:       key,
		Category:   category,
		Confidence: confidence,
		Source:     source,
	}, nil
}

// AddExample normalizes the text and upserts it into the corpus. A
// feedback example always supersedes a bootstrap example with the same
// normalized text; the reverse never happens.
func (m *Manager) AddExample(ctx context.Context, subject, text string, category models.Category, confidence float64, source models.ExampleSource) error {
	example, err := m.buildExample(subject, text, category, confidence, source)
	if err != nil {
		return err
	}
	if err := m.repo.Upsert(ctx, example); err != nil {
		return err
	}
	m.logger.Debug("Training example added",
		zap.String("category", string(category)),
		zap.String("source", string(source)))
	return nil
}

// AddExampleTx is AddExample inside a caller-owned transaction, so the
// feedback controller can make its email update and corpus write atomic
// as one unit.
func (m *Manager) AddExampleTx(tx *sqlx.Tx, subject, text string, category models.Category, confidence float64, source models.ExampleSource) error {
	example, err := m.buildExample(subject, text, category, confidence, source)
	if err != nil {
		return err
	}
	return m.repo.UpsertTx(tx, example)
}

// Corpus returns the full deduplicated example set grouped by category.
// This is the training snapshot; mutations after the call do not affect it.
func (m *Manager) Corpus(ctx context.Context) (map[models.Category][]string, error) {
	examples, err := m.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[models.Category][]string)
	for _, example := range examples {
		grouped[example.Category] = append(grouped[example.Category], example.Text)
	}
	return grouped, nil
}

// CategoryCounts reports the per-category example counts, used for
// retrain eligibility checks.
func (m *Manager) CategoryCounts(ctx context.Context) (models.CategoryCounts, error) {
	return m.repo.CategoryCounts(ctx)
}
