package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/classifier"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/corpus"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/repository"
)

var (
	// ErrInsufficientData means the corpus cannot support a non-degenerate
	// model yet. Recoverable by adding examples.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrTraining means a retrain attempt failed; the previously active
	// model keeps serving.
	ErrTraining = errors.New("model training failed")
)

// accuracySeed fixes the held-out split so the estimate is reproducible
// for a given corpus snapshot.
const accuracySeed = 42

// Orchestrator produces new model versions from the corpus and swaps
// them into the classifier service. Retraining is explicit and never
// triggered by feedback ingestion itself.
type Orchestrator struct {
	corpus     *corpus.Manager
	versions   repository.ModelVersionRepository
	classifier *classifier.Service

	minPerCategory int
	timeout        time.Duration
	snapshotPath   string

	logger *zap.Logger
}

type Config struct {
	MinExamplesPerCategory int
	Timeout                time.Duration
	SnapshotPath           string // Empty disables on-disk model snapshots
}

func NewOrchestrator(
	corpusMgr *corpus.Manager,
	versions repository.ModelVersionRepository,
	classifierSvc *classifier.Service,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MinExamplesPerCategory <= 0 {
		cfg.MinExamplesPerCategory = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Orchestrator{
		corpus:         corpusMgr,
		versions:       versions,
		classifier:     classifierSvc,
		minPerCategory: cfg.MinExamplesPerCategory,
		timeout:        cfg.Timeout,
		snapshotPath:   cfg.SnapshotPath,
		logger:         logger,
	}
}

// Retrain fits a new model from the current corpus snapshot, records it
// as a new version, and atomically makes it the serving model. On any
// failure the previously active version keeps serving.
func (o *Orchestrator) Retrain(ctx context.Context) (*models.ModelVersion, error) {
	counts, err := o.corpus.CategoryCounts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTraining, ctx.Err())
		}
		return nil, fmt.Errorf("failed to check corpus counts: %w", err)
	}

	for _, category := range models.Categories() {
		if counts[category] < o.minPerCategory {
			return nil, fmt.Errorf("%w: category %q has %d examples, need at least %d",
				ErrInsufficientData, category, counts[category], o.minPerCategory)
		}
	}

	snapshot, err := o.corpus.Corpus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTraining, ctx.Err())
		}
		return nil, fmt.Errorf("failed to snapshot corpus: %w", err)
	}

	sampleCount := 0
	for _, texts := range snapshot {
		sampleCount += len(texts)
	}

	trainCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	model, accuracy, err := fit(trainCtx, snapshot)
	if err != nil {
		o.logger.Error("Model training failed, previous model stays active", zap.Error(err))
		return nil, err
	}

	version := &models.ModelVersion{
		VersionID:         uuid.New().String(),
		TrainedAt:         time.Now().UTC(),
		SampleCount:       sampleCount,
		PerCategoryCounts: counts,
		AccuracyEstimate:  accuracy,
		Active:            false,
		CreatedAt:         time.Now().UTC(),
	}
	if err := o.versions.Insert(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to record model version: %w", err)
	}

	o.classifier.SwapActive(model, version.VersionID)

	if err := o.versions.Activate(ctx, version.VersionID); err != nil {
		return nil, fmt.Errorf("failed to activate model version: %w", err)
	}
	version.Active = true

	if o.snapshotPath != "" {
		if err := classifier.SaveSnapshot(o.snapshotPath, version.VersionID, model); err != nil {
			// Snapshots only speed up restarts; the new model already serves.
			o.logger.Warn("Failed to write model snapshot", zap.Error(err))
		}
	}

	o.logger.Info("Model retrained",
		zap.String("version_id", version.VersionID),
		zap.Int("sample_count", sampleCount),
		zap.Float64("accuracy_estimate", accuracy))
	return version, nil
}

// fit trains a candidate model and computes its accuracy estimate. The
// training runs outside any lock held by Predict, against the immutable
// snapshot. The context deadline converts into ErrTraining.
func fit(ctx context.Context, snapshot map[models.Category][]string) (*classifier.NaiveBayes, float64, error) {
	type result struct {
		model    *classifier.NaiveBayes
		accuracy float64
	}
	done := make(chan result, 1)

	go func() {
		train, held := split(snapshot)
		model := classifier.TrainNaiveBayes(snapshot)

		if len(held) == 0 {
			// Corpus too small to hold anything out: report training-set fit.
			for category, texts := range snapshot {
				for _, text := range texts {
					held = append(held, labeledText{category: category, text: text})
				}
			}
			train = snapshot
		}

		evaluator := classifier.TrainNaiveBayes(train)
		correct := 0
		for _, example := range held {
			if argmax(evaluator.Probabilities(example.text)) == example.category {
				correct++
			}
		}
		accuracy := float64(correct) / float64(len(held))
		done <- result{model: model, accuracy: accuracy}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%w: %v", ErrTraining, ctx.Err())
	case r := <-done:
		return r.model, r.accuracy, nil
	}
}

type labeledText struct {
	category models.Category
	text     string
}

// split holds out roughly 20% of each category for the accuracy
// estimate, deterministically, always keeping at least one training
// example per category. An empty held-out set means the corpus was too
// small to split.
func split(snapshot map[models.Category][]string) (map[models.Category][]string, []labeledText) {
	rng := rand.New(rand.NewSource(accuracySeed))

	train := make(map[models.Category][]string, len(snapshot))
	var held []labeledText

	for _, category := range models.Categories() {
		texts := append([]string(nil), snapshot[category]...)
		rng.Shuffle(len(texts), func(i, j int) { texts[i], texts[j] = texts[j], texts[i] })

		holdN := len(texts) / 5
		if holdN >= len(texts) {
			holdN = len(texts) - 1
		}
		if holdN < 0 {
			holdN = 0
		}
		for _, text := range texts[:holdN] {
			held = append(held, labeledText{category: category, text: text})
		}
		train[category] = texts[holdN:]
	}
	return train, held
}

func argmax(probs models.Probabilities) models.Category {
	best := models.Categories()[0]
	bestProb := probs[best]
	for _, category := range models.Categories()[1:] {
		if probs[category] > bestProb {
			best = category
			bestProb = probs[category]
		}
	}
	return best
}
