package bootstrap

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/M7madAwawdeh/smart-email-classifier/internal/corpus"
	"github.com/M7madAwawdeh/smart-email-classifier/internal/models"
)

// Loader seeds the training corpus from labeled files shipped with the
// deployment. Seeded rows carry the bootstrap source, so later human
// feedback on the same text wins.
type Loader struct {
	corpus *corpus.Manager
	logger *zap.Logger
}

func NewLoader(corpusMgr *corpus.Manager, logger *zap.Logger) *Loader {
	return &Loader{corpus: corpusMgr, logger: logger}
}

type seedEmail struct {
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// LoadJSON reads a JSON array of {subject, body, category} objects.
// Rows with unknown categories are skipped with a warning.
func (l *Loader) LoadJSON(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds []seedEmail
	if err := json.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	loaded := 0
	for _, seed := range seeds {
		if err := l.add(ctx, seed); err != nil {
			l.logger.Warn("Skipping seed example", zap.Error(err), zap.String("subject", seed.Subject))
			continue
		}
		loaded++
	}

	l.logger.Info("Bootstrap corpus loaded", zap.String("path", path), zap.Int("examples", loaded))
	return loaded, nil
}

// LoadCSV reads a CSV with a subject,body,category header row.
func (l *Loader) LoadCSV(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}

	loaded := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to read csv row: %w", err)
		}
		if len(record) < 3 {
			l.logger.Warn("Skipping malformed csv row", zap.Int("fields", len(record)))
			continue
		}

		seed := seedEmail{Subject: record[0], Body: record[1], Category: record[2]}
		if len(record) > 3 {
			if confidence, err := strconv.ParseFloat(record[3], 64); err == nil {
				seed.Confidence = confidence
			}
		}
		if err := l.add(ctx, seed); err != nil {
			l.logger.Warn("Skipping seed example", zap.Error(err), zap.String("subject", seed.Subject))
			continue
		}
		loaded++
	}

	l.logger.Info("Bootstrap corpus loaded", zap.String("path", path), zap.Int("examples", loaded))
	return loaded, nil
}

func (l *Loader) add(ctx context.Context, seed seedEmail) error {
	category, err := models.ParseCategory(seed.Category)
	if err != nil {
		return err
	}
	confidence := seed.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 1.0
	}
	return l.corpus.AddExample(ctx, seed.Subject, seed.Body, category, confidence, models.SourceBootstrap)
}
