// Package mariadb provides a MariaDB/MySQL implementation of the customer
// store for deployments without pgvector. Embeddings are stored as JSON
// arrays; similarity is always computed in Go, so the lack of a native
// vector type only costs storage efficiency.
package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/store"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// normalizeDSN forces parseTime on so DATETIME columns scan into time.Time,
// without clobbering parameters the DSN already carries.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	normalized, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
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

// Migrate creates the customers table.
func (p *Pool) Migrate(ctx context.Context) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS customers (
			id                       VARCHAR(36) PRIMARY KEY,
			name                     TEXT NOT NULL,
			dob                      DATETIME NOT NULL,
			national_id              VARCHAR(12) NOT NULL,
			other_documents          TEXT NOT NULL,
			primary_doc_embedding    LONGTEXT,
			secondary_doc_embedding  LONGTEXT,
			live_embedding           LONGTEXT,
			primary_doc_image_path   TEXT NOT NULL,
			secondary_doc_image_path TEXT NOT NULL,
			liveness_json            LONGTEXT,
			state                    VARCHAR(32) NOT NULL,
			created_at               DATETIME NOT NULL,
			updated_at               DATETIME NOT NULL,
			INDEX customers_national_id_idx (national_id)
		)
	`
	if _, err := p.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create customers table: %w", err)
	}
	return nil
}

// CustomerRepository is the MariaDB implementation of store.CustomerStore.
type CustomerRepository struct {
	pool *Pool
}

// NewCustomerRepository creates a new MariaDB customer repository.
func NewCustomerRepository(pool *Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `
	id, name, dob, national_id, other_documents,
	primary_doc_embedding, secondary_doc_embedding, live_embedding,
	primary_doc_image_path, secondary_doc_image_path,
	liveness_json, state, created_at, updated_at`

func encodeEmbedding(embedding []float32) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return string(data), nil
}

func decodeEmbedding(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(raw.String), &embedding); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return embedding, nil
}

func scanCustomer(row interface{ Scan(...any) error }) (*customer.Customer, error) {
	var c customer.Customer
	var primary, secondary, live, liveness sql.NullString

	err := row.Scan(
		&c.ID, &c.Name, &c.DOB, &c.NationalID, &c.OtherDocuments,
		&primary, &secondary, &live,
		&c.PrimaryDocImagePath, &c.SecondaryDocImagePath,
		&liveness, &c.State, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.PrimaryDocEmbedding, err = decodeEmbedding(primary); err != nil {
		return nil, err
	}
	if c.SecondaryDocEmbedding, err = decodeEmbedding(secondary); err != nil {
		return nil, err
	}
	if c.LiveEmbedding, err = decodeEmbedding(live); err != nil {
		return nil, err
	}

	if liveness.Valid && liveness.String != "" {
		var lr customer.LivenessResult
		if err := json.Unmarshal([]byte(liveness.String), &lr); err != nil {
			return nil, fmt.Errorf("decode liveness result: %w", err)
		}
		c.LivenessResult = &lr
	}

	return &c, nil
}

// Get retrieves a customer by id.
func (r *CustomerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE id = ?"

	c, err := scanCustomer(r.pool.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return c, nil
}

// List returns all customers ordered by creation time.
func (r *CustomerRepository) List(ctx context.Context) ([]*customer.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers ORDER BY created_at, id"

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	return collectCustomers(rows)
}

// FindWithEmbedding returns customers whose named embedding field is
// populated, excluding the given id.
func (r *CustomerRepository) FindWithEmbedding(ctx context.Context, field, excludeID string) ([]*customer.Customer, error) {
	var column string
	switch field {
	case customer.FieldPrimaryDoc:
		column = "primary_doc_embedding"
	case customer.FieldSecondaryDoc:
		column = "secondary_doc_embedding"
	case customer.FieldLive:
		column = "live_embedding"
	default:
		return nil, fmt.Errorf("unknown embedding field %q", field)
	}

	query := "SELECT " + customerColumns + " FROM customers WHERE " + column +
		" IS NOT NULL AND (? = '' OR id <> ?) ORDER BY created_at, id"

	rows, err := r.pool.db.QueryContext(ctx, query, excludeID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find customers with %s: %w", field, err)
	}
	defer rows.Close()

	return collectCustomers(rows)
}

func collectCustomers(rows *sql.Rows) ([]*customer.Customer, error) {
	var result []*customer.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return result, nil
}

// Save inserts or replaces a customer record.
func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	primary, err := encodeEmbedding(c.PrimaryDocEmbedding)
	if err != nil {
		return err
	}
	secondary, err := encodeEmbedding(c.SecondaryDocEmbedding)
	if err != nil {
		return err
	}
	live, err := encodeEmbedding(c.LiveEmbedding)
	if err != nil {
		return err
	}

	var liveness any
	if c.LivenessResult != nil {
		data, err := json.Marshal(c.LivenessResult)
		if err != nil {
			return fmt.Errorf("encode liveness result: %w", err)
		}
		liveness = string(data)
	}

	query := `
		REPLACE INTO customers (
			id, name, dob, national_id, other_documents,
			primary_doc_embedding, secondary_doc_embedding, live_embedding,
			primary_doc_image_path, secondary_doc_image_path,
			liveness_json, state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.pool.db.ExecContext(ctx, query,
		c.ID, c.Name, c.DOB, c.NationalID, c.OtherDocuments,
		primary, secondary, live,
		c.PrimaryDocImagePath, c.SecondaryDocImagePath,
		liveness, c.State, c.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	return nil
}

// Delete removes a customer record.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Count returns the total number of customers.
func (r *CustomerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return count, nil
}
