package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// NewSQLiteDB opens the SQLite database and prepares it for concurrent use.
func NewSQLiteDB(path string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; funnel everything through one
	// connection so concurrent ingestion workers serialize on it instead
	// of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	logger.Info("Successfully connected to the database", zap.String("path", path))
	return db, nil
}

// MigrateDB creates the schema.
func MigrateDB(db *sqlx.DB, logger *zap.Logger) error {
	schema := `
	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gmail_id TEXT UNIQUE,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		from_email TEXT,
		to_email TEXT,
		category TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		probabilities TEXT,
		auto_response TEXT,
		classified_by_version_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_emails_category ON emails(category);
	CREATE INDEX IF NOT EXISTS idx_emails_created_at ON emails(created_at);

	CREATE TABLE IF NOT EXISTS training_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		text TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence REAL NOT NULL,
		source TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_training_examples_category ON training_examples(category);

	CREATE TABLE IF NOT EXISTS training_example_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		example_id INTEGER NOT NULL,
		key TEXT NOT NULL,
		text TEXT NOT NULL,
		category TEXT NOT NULL,
		confidence REAL NOT NULL,
		source TEXT NOT NULL,
		superseded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS model_versions (
		version_id TEXT PRIMARY KEY,
		trained_at DATETIME NOT NULL,
		sample_count INTEGER NOT NULL,
		per_category_counts TEXT NOT NULL,
		accuracy_estimate REAL NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_model_versions_active
		ON model_versions(active) WHERE active = 1;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Database migration was run successfully")
	return nil
}
