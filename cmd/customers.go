package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/averma/kyc-verify/internal/config"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Inspect enrolled customers",
}

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled customers",
	RunE:  runCustomersList,
}

var customersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one customer record",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomersShow,
}

func init() {
	rootCmd.AddCommand(customersCmd)
	customersCmd.AddCommand(customersListCmd)
	customersCmd.AddCommand(customersShowCmd)

	customersListCmd.Flags().Bool("json", false, "JSON output for scripting")
}

func runCustomersList(cmd *cobra.Command, args []string) error {
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

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(customers)
	}

	fmt.Printf("%-36s  %-24s  %-12s  %-22s  %s\n", "ID", "NAME", "NATIONAL ID", "STATE", "LIVENESS")
	for _, c := range customers {
		liveness := "-"
		if c.LivenessResult != nil {
			liveness = fmt.Sprintf("live=%v accepted=%v", c.LivenessResult.IsLive, c.LivenessResult.Accepted())
		}
		fmt.Printf("%-36s  %-24s  %-12s  %-22s  %s\n", c.ID, c.Name, c.NationalID, c.State, liveness)
	}
	fmt.Printf("\n%d customers\n", len(customers))
	return nil
}

func runCustomersShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	customerStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	c, err := customerStore.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading customer: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return err
	}

	fmt.Printf("primary embedding:   %d dims\n", len(c.PrimaryDocEmbedding))
	fmt.Printf("secondary embedding: %d dims\n", len(c.SecondaryDocEmbedding))
	fmt.Printf("live embedding:      %d dims\n", len(c.LiveEmbedding))
	return nil
}
