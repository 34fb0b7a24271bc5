package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/averma/kyc-verify/internal/config"
	"github.com/averma/kyc-verify/internal/extract"
	"github.com/averma/kyc-verify/internal/onboarding"
	"github.com/averma/kyc-verify/internal/store"
	"github.com/averma/kyc-verify/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the onboarding API server",
	Long: `Start the KYC verification API server.
The server exposes the onboarding stages (identity, documents, liveness),
existing-customer verification and customer management endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("no-index", false, "Disable the in-memory population index")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	customerStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var index *store.PopulationIndex
	if !mustGetBool(cmd, "no-index") {
		index = store.NewPopulationIndex()
	}

	extractor := extract.NewClient(cfg.Extraction.URL, cfg.Extraction.Timeout)
	service := onboarding.NewService(
		customerStore, extractor,
		cfg.Matching.LiveThreshold, cfg.Matching.DuplicateThreshold,
		index,
	)

	if index != nil {
		fmt.Printf("Building in-memory population index...\n")
		n, err := service.RebuildIndex(ctx)
		if err != nil {
			fmt.Printf("Warning: failed to build population index: %v\n", err)
			fmt.Printf("Existing-customer verification will scan the full population\n")
		} else {
			fmt.Printf("Population index built with %d embeddings\n", n)
		}
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, service, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting KYC verification API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
