package cmd

import (
	"context"
	"fmt"

	"github.com/averma/kyc-verify/internal/config"
	"github.com/averma/kyc-verify/internal/store"
	"github.com/averma/kyc-verify/internal/store/mariadb"
	"github.com/averma/kyc-verify/internal/store/memory"
	"github.com/averma/kyc-verify/internal/store/postgres"
)

// openStore picks the storage backend from configuration: PostgreSQL when
// DATABASE_URL is set, MariaDB when MARIADB_DSN is set, otherwise an
// in-memory store for local development.
func openStore(ctx context.Context, cfg *config.Config) (store.CustomerStore, func(), error) {
	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.Database.EmbeddingDim); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		fmt.Printf("Using PostgreSQL backend\n")
		return postgres.NewCustomerRepository(pool), func() { pool.Close() }, nil

	case cfg.MariaDB.DSN != "":
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate MariaDB: %w", err)
		}
		fmt.Printf("Using MariaDB backend\n")
		return mariadb.NewCustomerRepository(pool), func() { pool.Close() }, nil

	default:
		fmt.Printf("No database configured, using in-memory store (data is lost on exit)\n")
		return memory.New(), func() {}, nil
	}
}
