package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
)

func newEventsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Tail ledger events from the AMQP queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.AMQPEnabled() {
				return errors.New("AMQP_URL is not set, ledger events are disabled")
			}

			client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
			if err != nil {
				return fmt.Errorf("connect to AMQP: %w", err)
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := a.logger.WithComponent(log.ComponentAMQP)
			logger.Info("Consuming ledger events", "exchange", a.cfg.AMQPExchange, "queue", a.cfg.AMQPQueue)

			err = client.ConsumeEvents(ctx, printEvent(cmd.OutOrStdout(), logger))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// printEvent writes one line per event: time, type, entity and payload.
func printEvent(out io.Writer, logger *log.Logger) func(context.Context, *amqp.LedgerEvent) error {
	return func(ctx context.Context, ev *amqp.LedgerEvent) error {
		logger.DebugContext(ctx, "Ledger event received", log.FieldEventType, ev.Type, "event_id", ev.ID)
		_, err := fmt.Fprintf(out, "%s %-20s %6d %s\n", ev.Timestamp.UTC().Format(time.RFC3339), ev.Type, ev.EntityID, ev.Data)
		return err
	}
}
