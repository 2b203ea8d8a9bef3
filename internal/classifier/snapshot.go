package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// modelSnapshot is the on-disk form of a trained model, so a restart can
// resume serving without retraining.
type modelSnapshot struct {
	VersionID  string                                  `json:"version_id"`
	LogPrior   map[models.Category]float64             `json:"log_prior"`
	LogProb    map[models.Category]map[string]float64  `json:"log_prob"`
	LogUnseen  map[models.Category]float64             `json:"log_unseen"`
	Vocabulary []string                                `json:"vocabulary"`
}

// SaveSnapshot writes the model to path atomically (write temp, rename).
func SaveSnapshot(path, versionID string, m *NaiveBayes) error {
	snapshot := modelSnapshot{
		VersionID: versionID,
		LogPrior:  m.logPrior,
		LogProb:   m.logProb,
		LogUnseen: m.logUnseen,
	}
	for token := range m.vocabulary {
		snapshot.Vocabulary = append(snapshot.Vocabulary, token)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal model snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace model snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a model back from disk. Returns the version id the
// model was trained under.
func LoadSnapshot(path string) (string, *NaiveBayes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read model snapshot: %w", err)
	}

	var snapshot modelSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return "", nil, fmt.Errorf("failed to parse model snapshot: %w", err)
	}

	m := &NaiveBayes{
		logPrior:   snapshot.LogPrior,
		logProb:    snapshot.LogProb,
		logUnseen:  snapshot.LogUnseen,
		vocabulary: make(map[string]struct{}, len(snapshot.Vocabulary)),
	}
	for _, token := range snapshot.Vocabulary {
		m.vocabulary[token] = struct{}{}
	}
	return snapshot.VersionID, m, nil
}
