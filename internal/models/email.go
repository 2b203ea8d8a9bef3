package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Probabilities is a full distribution over the category taxonomy,
// stored as a JSON text column.
type Probabilities map[Category]float64

func (p Probabilities) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *Probabilities) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into Probabilities", src)
	}
}

// Email represents a classified email stored in the 'emails' table.
type Email struct {
	ID                    int64         `db:"id" json:"id"`
	GmailID               *string       `db:"gmail_id" json:"gmail_id,omitempty"` // Nullable, unique when present
	Subject               string        `db:"subject" json:"subject"`
	Body                  string        `db:"body" json:"body"`
	FromEmail             *string       `db:"from_email" json:"from_email,omitempty"`
	ToEmail               *string       `db:"to_email" json:"to_email,omitempty"`
	Category              Category      `db:"category" json:"category"`
	Confidence            float64       `db:"confidence" json:"confidence"`
	Probabilities         Probabilities `db:"probabilities" json:"probabilities,omitempty"`
	AutoResponse          *string       `db:"auto_response" json:"auto_response,omitempty"`
	ClassifiedByVersionID *string       `db:"classified_by_version_id" json:"classified_by_version_id,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// EmailListFilter narrows and pages the email listing.
type EmailListFilter struct {
	Category *Category
	Page     int
	PerPage  int
}

// CategoryStats holds the per-category analytics derived from stored emails.
type CategoryStats struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"average_confidence"`
}

// Analytics is the read-only dashboard summary.
type Analytics struct {
	TotalEmails          int                        `json:"total_emails"`
	CategoryDistribution map[Category]int           `json:"category_distribution"`
	AverageConfidence    map[Category]float64       `json:"average_confidence"`
	RecentEmails         []*Email                   `json:"recent_activity"`
	PerCategory          map[Category]CategoryStats `json:"per_category"`
}
