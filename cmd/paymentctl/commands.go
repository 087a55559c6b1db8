package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"storefront-checkout-backend/internal/app"
	"storefront-checkout-backend/internal/config"
	"storefront-checkout-backend/internal/events"
	"storefront-checkout-backend/internal/payments/dintero"
	"storefront-checkout-backend/internal/repository"
	"storefront-checkout-backend/internal/service"
	"storefront-checkout-backend/pkg/lang"
)

const commandTimeout = time.Minute

type runtime struct {
	client         *dintero.Client
	reconciliation *service.ReconciliationService
	close          func()
}

// openRuntime wires the reconciliation engine the same way the API does.
// Events are published when brokers are configured.
func openRuntime(ctx context.Context, withDatabase bool) (*runtime, error) {
	cfg := config.New()
	if !cfg.PaymentsConfigured() {
		return nil, fmt.Errorf("DINTERO_ACCOUNT_ID, DINTERO_CLIENT_ID and DINTERO_CLIENT_SECRET must be set")
	}

	client, err := app.NewPaymentClient(cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{client: client, close: func() {}}
	if !withDatabase {
		return rt, nil
	}

	db, err := app.OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	var kafka *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.PaymentEventsTopic, cfg.ServiceName+"-cli", 16)
		kafka.Start(ctx)
		publisher = kafka
	}

	rt.reconciliation = service.NewReconciliationService(repository.NewOrderRepository(db), client, publisher, lang.NewCatalog())
	rt.close = func() {
		if kafka != nil {
			kafka.Close()
			kafka.WaitClosed()
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return rt, nil
}

func parseOrderArg(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid order id %q", arg)
	}
	return uint(id), nil
}

func printJSON(value interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func orderCommand(use, short string, run func(ctx context.Context, rt *runtime, orderID uint) (service.Outcome, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [order-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseOrderArg(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			rt, err := openRuntime(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			outcome, err := run(ctx, rt, orderID)
			if err != nil {
				return fmt.Errorf("%s order %d: %w", use, orderID, err)
			}
			fmt.Printf("order %d: %s\n", orderID, outcome)
			return nil
		},
	}
}

func captureCmd() *cobra.Command {
	return orderCommand("capture", "Capture the authorized payment of an order",
		func(ctx context.Context, rt *runtime, orderID uint) (service.Outcome, error) {
			return rt.reconciliation.Capture(ctx, orderID)
		})
}

func cancelCmd() *cobra.Command {
	return orderCommand("cancel", "Void the authorization of an order",
		func(ctx context.Context, rt *runtime, orderID uint) (service.Outcome, error) {
			return rt.reconciliation.Cancel(ctx, orderID)
		})
}

func refundCmd() *cobra.Command {
	var (
		refundID uint
		reason   string
	)
	cmd := orderCommand("refund", "Send a refund record of an order to the provider",
		func(ctx context.Context, rt *runtime, orderID uint) (service.Outcome, error) {
			return rt.reconciliation.Refund(ctx, orderID, refundID, reason)
		})
	cmd.Flags().UintVar(&refundID, "refund-id", 0, "Refund record to send (default: oldest unprocessed)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown at the provider")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [order-id]",
		Short: "Show local and remote payment state of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseOrderArg(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			rt, err := openRuntime(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			status, err := rt.reconciliation.PaymentStatus(ctx, orderID)
			if err != nil {
				return err
			}
			return printJSON(status)
		},
	}
}

func transactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transaction [transaction-id]",
		Short: "Fetch a transaction from the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			rt, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}

			result, err := rt.client.GetTransaction(ctx, args[0])
			if err != nil {
				return err
			}
			if result.IsError {
				return result.Err("get_transaction")
			}
			return printJSON(result.Value)
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Check that the provider credentials can obtain an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			rt, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}

			if _, err := rt.client.Tokens().Token(ctx); err != nil {
				return err
			}
			fmt.Printf("token ok, expires at %s\n", rt.client.Tokens().ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}
}
