package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"storefront-checkout-backend/pkg/logger"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	logger.InitJSON(envOr("LOG_LEVEL", "warn"))

	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operate on order payments at the payment provider",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(captureCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(transactionCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
