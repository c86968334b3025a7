package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createTable = `CREATE TABLE IF NOT EXISTS domain_registry (
	domain_name           TEXT PRIMARY KEY,
	model_location        TEXT NOT NULL,
	preprocessor_location TEXT NOT NULL DEFAULT '',
	training_columns      TEXT NOT NULL,
	target_column         TEXT NOT NULL DEFAULT '',
	feature_count         INTEGER NOT NULL,
	sample_count          INTEGER NOT NULL,
	created_at            TEXT NOT NULL
)`

// SQLStore keeps the registry in a SQLite table.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens the SQLite database at dsn and creates the registry table
// when it does not exist.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating registry table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Load reads every row into a document.
func (s *SQLStore) Load(ctx context.Context) (*Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain_name, model_location, preprocessor_location,
		training_columns, target_column, feature_count, sample_count, created_at FROM domain_registry`)
	if err != nil {
		return nil, fmt.Errorf("querying registry: %w", err)
	}
	defer rows.Close()

	doc := NewDocument()
	for rows.Next() {
		var (
			e       Entry
			columns string
			created string
		)
		if err := rows.Scan(&e.DomainName, &e.ModelLocation, &e.PreprocessorLocation,
			&columns, &e.TargetColumn, &e.FeatureCount, &e.SampleCount, &created); err != nil {
			return nil, fmt.Errorf("scanning registry row: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &e.TrainingColumns); err != nil {
			return nil, fmt.Errorf("decoding training columns of %s: %w", e.DomainName, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("decoding created_at of %s: %w", e.DomainName, err)
		}
		doc.Models[e.DomainName] = e
	}
	return doc, rows.Err()
}

// Save replaces every row with the entries of doc in one transaction.
func (s *SQLStore) Save(ctx context.Context, doc *Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting registry transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM domain_registry`); err != nil {
		return fmt.Errorf("clearing registry: %w", err)
	}
	if doc != nil {
		for _, name := range doc.Names() {
			e := doc.Models[name]
			columns, err := json.Marshal(e.TrainingColumns)
			if err != nil {
				return fmt.Errorf("encoding training columns of %s: %w", name, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO domain_registry VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				name, e.ModelLocation, e.PreprocessorLocation, string(columns), e.TargetColumn,
				e.FeatureCount, e.SampleCount, e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("inserting %s: %w", name, err)
			}
		}
	}
	return tx.Commit()
}
