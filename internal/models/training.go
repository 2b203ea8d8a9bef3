package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExampleSource tells where a training label came from. Feedback labels
// take precedence over bootstrap labels for the same normalized text.
type ExampleSource string

const (
	SourceBootstrap ExampleSource = "bootstrap"
	SourceFeedback  ExampleSource = "feedback"
)

// TrainingExample is a single labeled example in the 'training_examples'
// table. At most one active example exists per normalized text key;
// superseded versions are copied to the history table.
type TrainingExample struct {
	ID         int64         `db:"id" json:"id"`
	Key        string        `db:"key" json:"-"` // Normalized text, unique
	Text       string        `db:"text" json:"text"`
	Category   Category      `db:"category" json:"category"`
	Confidence float64       `db:"confidence" json:"confidence"`
	Source     ExampleSource `db:"source" json:"source"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// CategoryCounts maps categories to example counts, stored as JSON text.
type CategoryCounts map[Category]int

func (c CategoryCounts) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *CategoryCounts) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("cannot scan %T into CategoryCounts", src)
	}
}

// ModelVersion is one trained snapshot of the classifier, stored in the
// 'model_versions' table. Rows are append-only; at most one row is active.
type ModelVersion struct {
	VersionID         string         `db:"version_id" json:"version_id"`
	TrainedAt         time.Time      `db:"trained_at" json:"trained_at"`
	SampleCount       int            `db:"sample_count" json:"sample_count"`
	PerCategoryCounts CategoryCounts `db:"per_category_counts" json:"per_category_sample_count"`
	AccuracyEstimate  float64        `db:"accuracy_estimate" json:"accuracy_estimate"`
	Active            bool           `db:"active" json:"active"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}
