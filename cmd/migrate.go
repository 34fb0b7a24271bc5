package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/averma/kyc-verify/internal/config"
	"github.com/averma/kyc-verify/internal/store/mariadb"
	"github.com/averma/kyc-verify/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Create or update the customers schema on the configured database.
The PostgreSQL backend also gets the pgvector extension and, with
--vector-index, an IVFFlat index for the primary document embeddings.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("vector-index", false, "Also create the IVFFlat vector index (PostgreSQL only)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	switch {
	case cfg.Database.URL != "":
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer pool.Close()

		if err := pool.Migrate(ctx, cfg.Database.EmbeddingDim); err != nil {
			return err
		}
		fmt.Printf("PostgreSQL schema ready (embedding dim %d)\n", cfg.Database.EmbeddingDim)

		if mustGetBool(cmd, "vector-index") {
			if err := pool.CreateVectorIndex(ctx); err != nil {
				return err
			}
			fmt.Println("IVFFlat vector index created")
		}
		return nil

	case cfg.MariaDB.DSN != "":
		pool, err := mariadb.NewPool(cfg.MariaDB.DSN)
		if err != nil {
			return fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		defer pool.Close()

		if err := pool.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("MariaDB schema ready")
		return nil

	default:
		return errors.New("no database configured: set DATABASE_URL or MARIADB_DSN")
	}
}
