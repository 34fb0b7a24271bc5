// Package postgres provides the PostgreSQL + pgvector implementation of
// the customer store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/averma/kyc-verify/internal/config"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// QueryRow executes a query that returns a single row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// Exec executes a query that doesn't return rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// Migrate creates the schema. The embedding columns are typed vectors, so
// the extractor's dimensionality is fixed at migration time.
func (p *Pool) Migrate(ctx context.Context, embeddingDim int) error {
	if _, err := p.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS customers (
			id                       UUID PRIMARY KEY,
			name                     TEXT NOT NULL,
			dob                      TIMESTAMP WITH TIME ZONE NOT NULL,
			national_id              VARCHAR(12) NOT NULL,
			other_documents          TEXT NOT NULL DEFAULT '',
			primary_doc_embedding    vector(%d),
			secondary_doc_embedding  vector(%d),
			live_embedding           vector(%d),
			primary_doc_image_path   TEXT NOT NULL DEFAULT '',
			secondary_doc_image_path TEXT NOT NULL DEFAULT '',
			liveness_is_live         BOOLEAN,
			liveness_primary_match   BOOLEAN,
			liveness_secondary_match BOOLEAN,
			liveness_blink           BOOLEAN,
			liveness_mouth           BOOLEAN,
			liveness_skin            BOOLEAN,
			liveness_completed_at    TIMESTAMP WITH TIME ZONE,
			state                    VARCHAR(32) NOT NULL,
			created_at               TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at               TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, embeddingDim, embeddingDim, embeddingDim)

	if _, err := p.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create customers table: %w", err)
	}

	if _, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS customers_national_id_idx ON customers(national_id)
	`); err != nil {
		return fmt.Errorf("failed to create national_id index: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for the primary document
// embedding. Call after the table has some data for sensible clustering.
func (p *Pool) CreateVectorIndex(ctx context.Context) error {
	_, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS customers_primary_doc_vector_idx
		ON customers USING ivfflat (primary_doc_embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}
