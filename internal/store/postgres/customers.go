package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/store"
)

// customerColumns is the column list shared by all SELECTs.
const customerColumns = `
	id, name, dob, national_id, other_documents,
	primary_doc_embedding, secondary_doc_embedding, live_embedding,
	primary_doc_image_path, secondary_doc_image_path,
	liveness_is_live, liveness_primary_match, liveness_secondary_match,
	liveness_blink, liveness_mouth, liveness_skin, liveness_completed_at,
	state, created_at, updated_at`

// CustomerRepository is the PostgreSQL implementation of store.CustomerStore.
type CustomerRepository struct {
	pool *Pool
}

// NewCustomerRepository creates a new PostgreSQL customer repository.
func NewCustomerRepository(pool *Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (v *nullVector) Scan(src any) error {
	if src == nil {
		v.valid = false
		return nil
	}
	v.valid = true
	return v.vec.Scan(src)
}

func (v *nullVector) slice() []float32 {
	if !v.valid {
		return nil
	}
	return v.vec.Slice()
}

// vectorArg converts an embedding to an insert argument, NULL when unset.
func vectorArg(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// scanCustomer scans one row into a customer record.
func scanCustomer(row interface{ Scan(...any) error }) (*customer.Customer, error) {
	var c customer.Customer
	var primary, secondary, live nullVector
	var isLive, primaryMatch, secondaryMatch, blink, mouth, skin sql.NullBool
	var completedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.Name, &c.DOB, &c.NationalID, &c.OtherDocuments,
		&primary, &secondary, &live,
		&c.PrimaryDocImagePath, &c.SecondaryDocImagePath,
		&isLive, &primaryMatch, &secondaryMatch,
		&blink, &mouth, &skin, &completedAt,
		&c.State, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.PrimaryDocEmbedding = primary.slice()
	c.SecondaryDocEmbedding = secondary.slice()
	c.LiveEmbedding = live.slice()

	if completedAt.Valid {
		c.LivenessResult = &customer.LivenessResult{
			IsLive:         isLive.Bool,
			PrimaryMatch:   primaryMatch.Bool,
			SecondaryMatch: secondaryMatch.Bool,
			Cues: customer.LivenessCues{
				Blink:           blink.Bool,
				MouthMovement:   mouth.Bool,
				SkinReflectance: skin.Bool,
			},
			CompletedAt: completedAt.Time,
		}
	}

	return &c, nil
}

// Get retrieves a customer by id.
func (r *CustomerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE id = $1"

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
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

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	return collectCustomers(rows)
}

// FindWithEmbedding returns customers whose named embedding field is
// populated, excluding the given id. The field name is mapped to a column
// explicitly; it is never interpolated from caller input.
func (r *CustomerRepository) FindWithEmbedding(ctx context.Context, field, excludeID string) ([]*customer.Customer, error) {
	column, err := embeddingColumn(field)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + customerColumns + " FROM customers WHERE " + column +
		" IS NOT NULL AND ($1 = '' OR id <> $1::uuid) ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find customers with %s: %w", field, err)
	}
	defer rows.Close()

	return collectCustomers(rows)
}

func embeddingColumn(field string) (string, error) {
	switch field {
	case customer.FieldPrimaryDoc:
		return "primary_doc_embedding", nil
	case customer.FieldSecondaryDoc:
		return "secondary_doc_embedding", nil
	case customer.FieldLive:
		return "live_embedding", nil
	default:
		return "", fmt.Errorf("unknown embedding field %q", field)
	}
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
	query := `
		INSERT INTO customers (
			id, name, dob, national_id, other_documents,
			primary_doc_embedding, secondary_doc_embedding, live_embedding,
			primary_doc_image_path, secondary_doc_image_path,
			liveness_is_live, liveness_primary_match, liveness_secondary_match,
			liveness_blink, liveness_mouth, liveness_skin, liveness_completed_at,
			state, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		          $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			dob = EXCLUDED.dob,
			national_id = EXCLUDED.national_id,
			other_documents = EXCLUDED.other_documents,
			primary_doc_embedding = EXCLUDED.primary_doc_embedding,
			secondary_doc_embedding = EXCLUDED.secondary_doc_embedding,
			live_embedding = EXCLUDED.live_embedding,
			primary_doc_image_path = EXCLUDED.primary_doc_image_path,
			secondary_doc_image_path = EXCLUDED.secondary_doc_image_path,
			liveness_is_live = EXCLUDED.liveness_is_live,
			liveness_primary_match = EXCLUDED.liveness_primary_match,
			liveness_secondary_match = EXCLUDED.liveness_secondary_match,
			liveness_blink = EXCLUDED.liveness_blink,
			liveness_mouth = EXCLUDED.liveness_mouth,
			liveness_skin = EXCLUDED.liveness_skin,
			liveness_completed_at = EXCLUDED.liveness_completed_at,
			state = EXCLUDED.state,
			updated_at = NOW()
	`

	var isLive, primaryMatch, secondaryMatch, blink, mouth, skin sql.NullBool
	var completedAt sql.NullTime
	if lr := c.LivenessResult; lr != nil {
		isLive = sql.NullBool{Bool: lr.IsLive, Valid: true}
		primaryMatch = sql.NullBool{Bool: lr.PrimaryMatch, Valid: true}
		secondaryMatch = sql.NullBool{Bool: lr.SecondaryMatch, Valid: true}
		blink = sql.NullBool{Bool: lr.Cues.Blink, Valid: true}
		mouth = sql.NullBool{Bool: lr.Cues.MouthMovement, Valid: true}
		skin = sql.NullBool{Bool: lr.Cues.SkinReflectance, Valid: true}
		completedAt = sql.NullTime{Time: lr.CompletedAt, Valid: true}
	}

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Name, c.DOB, c.NationalID, c.OtherDocuments,
		vectorArg(c.PrimaryDocEmbedding), vectorArg(c.SecondaryDocEmbedding), vectorArg(c.LiveEmbedding),
		c.PrimaryDocImagePath, c.SecondaryDocImagePath,
		isLive, primaryMatch, secondaryMatch,
		blink, mouth, skin, completedAt,
		c.State, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	return nil
}

// Delete removes a customer record.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM customers WHERE id = $1", id)
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return count, nil
}
