package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/averma/kyc-verify/internal/config"
	"github.com/averma/kyc-verify/internal/customer"
	"github.com/averma/kyc-verify/internal/store"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the population index from stored embeddings",
	Long: `Rebuild the in-memory HNSW population index from every stored
document embedding and report its size. Useful to validate that stored
embeddings are consistent (dimensionality, decodability) after imports
or threshold retuning.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	customerStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	customers, err := customerStore.List(ctx)
	if err != nil {
		return fmt.Errorf("listing customers: %w", err)
	}

	index := store.NewPopulationIndex()
	bar := progressbar.Default(int64(len(customers)), "indexing")

	var skipped int
	for _, c := range customers {
		entries := store.PopulationFor(
			[]*customer.Customer{c}, "",
			customer.FieldPrimaryDoc, customer.FieldSecondaryDoc,
		)
		before := index.Len()
		for _, e := range entries {
			index.Add(e)
		}
		skipped += len(entries) - (index.Len() - before)
		_ = bar.Add(1)
	}

	fmt.Printf("\nIndexed %d embeddings from %d customers", index.Len(), len(customers))
	if skipped > 0 {
		fmt.Printf(" (%d skipped: dimensionality mismatch)", skipped)
	}
	fmt.Println()
	return nil
}
