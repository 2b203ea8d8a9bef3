package classifier

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// ErrModelNotReady is returned by Predict before any model has been
// trained or loaded. Recoverable by retraining with bootstrap data.
var ErrModelNotReady = errors.New("no classification model is ready")

// Prediction is the result of classifying one email.
type Prediction struct {
	Category      models.Category      `json:"category"`
	Confidence    float64              `json:"confidence"`
	Probabilities models.Probabilities `json:"probabilities"`
	VersionID     string               `json:"model_version_id"`
}

// activeModel pairs a model with the version it was trained under, so a
// single pointer swap replaces both together.
type activeModel struct {
	model     Model
	versionID string
}

// Service serves predictions from the active model. Reads are lock-free;
// SwapActive is a single atomic pointer update, so an in-flight Predict
// sees either the old or the new model in full, never a mix.
type Service struct {
	active atomic.Pointer[activeModel]
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Ready reports whether a model is serving.
func (s *Service) Ready() bool {
	return s.active.Load() != nil
}

// ActiveVersion returns the serving model version id, or "" when no
// model is ready.
func (s *Service) ActiveVersion() string {
	current := s.active.Load()
	if current == nil {
		return ""
	}
	return current.versionID
}

// Predict classifies an email. Deterministic for a fixed active model and
// fixed input. Confidence is the maximum class probability; ties are
// broken by taxonomy order.
func (s *Service) Predict(subject, body string) (*Prediction, error) {
	current := s.active.Load()
	if current == nil {
		return nil, ErrModelNotReady
	}

	probs := current.model.Probabilities(subject + " " + body)

	best := models.Categories()[0]
	bestProb := probs[best]
	for _, category := range models.Categories()[1:] {
		if probs[category] > bestProb {
			best = category
			bestProb = probs[category]
		}
	}

	return &Prediction{
		Category:      best,
		Confidence:    bestProb,
		Probabilities: probs,
		VersionID:     current.versionID,
	}, nil
}

// SwapActive replaces the serving model. In-flight Predict calls are not
// blocked; subsequent calls use the new version.
func (s *Service) SwapActive(model Model, versionID string) {
	s.active.Store(&activeModel{model: model, versionID: versionID})
	s.logger.Info("Active model swapped", zap.String("version_id", versionID))
}
