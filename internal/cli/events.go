package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowrunner/internal/mq"
)

// NewEventsCmd создаёт группу команд для чтения шины событий.
func NewEventsCmd(outputFn func() *Output, loggerFn func() *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read engine events from RabbitMQ",
	}

	cmd.AddCommand(newEventsTailCmd(outputFn, loggerFn))

	return cmd
}

func newEventsTailCmd(outputFn func() *Output, loggerFn func() *slog.Logger) *cobra.Command {
	var url string
	var pattern string
	var runID string
	var shared bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print engine events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := loggerFn()

			conn, err := mq.NewConnection(url, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx := cmd.Context()

			queue := string(mq.QueueEventsTail)
			if shared {
				if err := mq.SetupTopology(ctx, conn); err != nil {
					return err
				}
			} else {
				queue, err = mq.DeclareTailQueue(ctx, conn, mq.RoutingKey(pattern))
				if err != nil {
					return err
				}
			}

			printer := &eventPrinter{out: out, runID: runID}
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:   queue,
				Handler: printer.handle,
			})

			out.Success(fmt.Sprintf("Listening on %s (%s), Ctrl+C to stop", mq.ExchangeEvents, queue))

			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	defaultURL := os.Getenv("RABBITMQ_URL")
	if defaultURL == "" {
		defaultURL = mq.DefaultURL()
	}

	cmd.Flags().StringVar(&url, "rabbitmq-url", defaultURL, "RabbitMQ URL")
	cmd.Flags().StringVar(&pattern, "pattern", string(mq.RoutingKeyAll), "Routing key pattern (node.started, node.dispatched, run.completed, #)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Only print events of this run")
	cmd.Flags().BoolVar(&shared, "shared", false, "Consume the durable events.tail queue instead of a private one")

	return cmd
}

// eventPrinter печатает сообщения шины событий.
type eventPrinter struct {
	out   *Output
	runID string
}

func (p *eventPrinter) handle(_ context.Context, msg *mq.Message) error {
	line, runID, err := formatBusMessage(msg)
	if err != nil {
		// Битое сообщение не должно возвращаться в очередь.
		p.out.Error(fmt.Sprintf("skip message %s: %v", msg.ID, err))
		return nil
	}

	if p.runID != "" && runID != p.runID {
		return nil
	}

	if p.out.IsJSON() {
		data, err := json.Marshal(msg)
		if err != nil {
			return nil
		}
		p.out.Line(string(data))
		return nil
	}

	p.out.Line(line)
	return nil
}

// formatBusMessage возвращает строку для вывода и run_id сообщения.
func formatBusMessage(msg *mq.Message) (string, string, error) {
	ts := msg.Timestamp.Format("15:04:05.000")

	if msg.Type == mq.MessageTypeRunCompleted {
		summary, err := mq.ParsePayload[RunSummary](msg)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s  %-15s  run=%s  %s", ts, msg.Type, summary.RunID, formatSummary(summary)),
			summary.RunID, nil
	}

	env, err := mq.DecodeEvent(msg)
	if err != nil {
		return "", "", err
	}

	ev := EventMessage{Event: env.Event, RunID: env.RunID, Payload: env.Payload}
	row := eventRow(ev)
	line := fmt.Sprintf("%s  %-15s  run=%s  event=%s node=%s type=%s", ts, msg.Type, env.RunID, row[0], row[1], row[2])
	if row[3] != "" {
		line += "  " + row[3]
	}
	return line, env.RunID, nil
}
