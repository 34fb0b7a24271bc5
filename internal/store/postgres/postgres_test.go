//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/averma/kyc-verify/internal/config"
	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/store"
)

const testEmbeddingDim = 8

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		EmbeddingDim: testEmbeddingDim,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx, testEmbeddingDim); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(seed float32) []float32 {
	embedding := make([]float32, testEmbeddingDim)
	for i := range embedding {
		embedding[i] = seed + float32(i)/float32(testEmbeddingDim)
	}
	return embedding
}

func newTestCustomer(t *testing.T, name, nationalID string) *customer.Customer {
	t.Helper()
	c, err := customer.New(name, time.Date(1991, 3, 15, 0, 0, 0, 0, time.UTC), nationalID, "")
	if err != nil {
		t.Fatalf("Failed to create customer: %v", err)
	}
	return c
}

func TestCustomerRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewCustomerRepository(pool)

	t.Run("SaveAndGet", func(t *testing.T) {
		c := newTestCustomer(t, "Asha Verma", "123456789012")
		c.PrimaryDocEmbedding = testEmbedding(0.1)
		c.State = customer.StatePrimaryDocCaptured
		c.PrimaryDocImagePath = "uploads/primary/asha.jpg"

		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Failed to save customer: %v", err)
		}

		got, err := repo.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("Failed to get customer: %v", err)
		}
		if got.Name != "Asha Verma" || got.NationalID != "123456789012" {
			t.Errorf("Unexpected identity fields: %+v", got)
		}
		if got.State != customer.StatePrimaryDocCaptured {
			t.Errorf("Expected state %s, got %s", customer.StatePrimaryDocCaptured, got.State)
		}
		if len(got.PrimaryDocEmbedding) != testEmbeddingDim {
			t.Errorf("Expected %d dimensions, got %d", testEmbeddingDim, len(got.PrimaryDocEmbedding))
		}
		if got.SecondaryDocEmbedding != nil || got.LiveEmbedding != nil {
			t.Error("Unset embeddings must scan as nil")
		}
		if got.LivenessResult != nil {
			t.Error("Expected no liveness result yet")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := repo.Get(ctx, "00000000-0000-0000-0000-000000000000")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpsertLivenessResult", func(t *testing.T) {
		c := newTestCustomer(t, "Rahul Gupta", "123456789013")
		c.PrimaryDocEmbedding = testEmbedding(0.2)
		c.SecondaryDocEmbedding = testEmbedding(0.3)
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Failed to save customer: %v", err)
		}

		c.LiveEmbedding = testEmbedding(0.25)
		c.LivenessResult = &customer.LivenessResult{
			IsLive:         true,
			PrimaryMatch:   true,
			SecondaryMatch: true,
			Cues:           customer.LivenessCues{Blink: true, MouthMovement: true},
			CompletedAt:    time.Now().UTC(),
		}
		c.State = customer.StateLivenessCompleted
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Failed to upsert customer: %v", err)
		}

		got, err := repo.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("Failed to get customer: %v", err)
		}
		if got.LivenessResult == nil {
			t.Fatal("Expected liveness result")
		}
		if !got.LivenessResult.Accepted() {
			t.Errorf("Expected accepted result, got %+v", got.LivenessResult)
		}
		if !got.LivenessResult.Cues.Blink || got.LivenessResult.Cues.SkinReflectance {
			t.Errorf("Unexpected cues: %+v", got.LivenessResult.Cues)
		}
		if got.State != customer.StateLivenessCompleted {
			t.Errorf("Expected state %s, got %s", customer.StateLivenessCompleted, got.State)
		}
	})

	t.Run("FindWithEmbedding", func(t *testing.T) {
		noEmbedding := newTestCustomer(t, "Maya Iyer", "123456789014")
		if err := repo.Save(ctx, noEmbedding); err != nil {
			t.Fatalf("Failed to save customer: %v", err)
		}

		found, err := repo.FindWithEmbedding(ctx, customer.FieldPrimaryDoc, "")
		if err != nil {
			t.Fatalf("Failed to find customers: %v", err)
		}
		for _, c := range found {
			if c.ID == noEmbedding.ID {
				t.Error("Customer without the embedding must not be returned")
			}
			if len(c.PrimaryDocEmbedding) == 0 {
				t.Error("Returned customer is missing the embedding")
			}
		}

		// Exclusion removes exactly one record.
		if len(found) > 0 {
			excluded, err := repo.FindWithEmbedding(ctx, customer.FieldPrimaryDoc, found[0].ID)
			if err != nil {
				t.Fatalf("Failed to find customers: %v", err)
			}
			if len(excluded) != len(found)-1 {
				t.Errorf("Expected %d customers after exclusion, got %d", len(found)-1, len(excluded))
			}
		}
	})

	t.Run("FindWithEmbedding_UnknownField", func(t *testing.T) {
		if _, err := repo.FindWithEmbedding(ctx, "created_at; DROP TABLE customers", ""); err == nil {
			t.Error("Expected error for unknown embedding field")
		}
	})

	t.Run("ListOrdering", func(t *testing.T) {
		all, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("Failed to list customers: %v", err)
		}
		for i := 1; i < len(all); i++ {
			if all[i].CreatedAt.Before(all[i-1].CreatedAt) {
				t.Error("List is not ordered by creation time")
			}
		}
	})

	t.Run("CountAndDelete", func(t *testing.T) {
		before, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count customers: %v", err)
		}

		c := newTestCustomer(t, "Temp Customer", "123456789015")
		if err := repo.Save(ctx, c); err != nil {
			t.Fatalf("Failed to save customer: %v", err)
		}

		after, _ := repo.Count(ctx)
		if after != before+1 {
			t.Errorf("Expected count %d, got %d", before+1, after)
		}

		if err := repo.Delete(ctx, c.ID); err != nil {
			t.Fatalf("Failed to delete customer: %v", err)
		}
		if err := repo.Delete(ctx, c.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on double delete, got %v", err)
		}
	})

	t.Run("VectorIndex", func(t *testing.T) {
		if err := pool.CreateVectorIndex(ctx); err != nil {
			t.Fatalf("Failed to create vector index: %v", err)
		}
	})
}
