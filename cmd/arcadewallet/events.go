package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/arcadewallet/service/nats"
	"github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// eventsCommand streams the transaction events published by the engine.
func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Stream game transaction events from NATS JetStream",
		ArgsUsage: "[signer_address]",
		Description: `Streams the outcome of every buy and save-score transaction.

Events are published to the subject arcade.txns.{signer_address}. Without an
address, events for all signers are shown.

Example:
  arcadewallet events --must-jq '.status == "failed"' --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Replay retained events instead of only new ones",
			},
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (0 streams until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.SubjectPrefix + ".*"
			if c.NArg() > 0 {
				address, err := solana.PublicKeyFromBase58(c.Args().Get(0))
				if err != nil {
					return fmt.Errorf("invalid signer address: %w", err)
				}
				subject = natspkg.SubjectPrefix + "." + address.String()
			}

			filters := make([]*gojq.Code, 0, len(c.StringSlice("must-jq")))
			for _, expr := range c.StringSlice("must-jq") {
				code, err := compileJQ(expr)
				if err != nil {
					return err
				}
				filters = append(filters, code)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if d := c.Duration("for"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			return streamEvents(ctx, c, subject, filters)
		},
	}
}

func streamEvents(ctx context.Context, c *cli.Context, subject string, filters []*gojq.Code) error {
	natsURL := c.String("nats-url")
	jsonOutput := c.Bool("json")
	w := c.App.Writer

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	deliver := jetstream.DeliverNewPolicy
	if c.Bool("all") {
		deliver = jetstream.DeliverAllPolicy
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: deliver,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(os.Stderr, "   NATS: %s\n", natsURL)
		fmt.Fprintf(os.Stderr, "\nWaiting for events... (Ctrl-C to exit)\n\n")
	}

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.TransactionEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			msg.Ack()

			ok, err := matchesJQ(filters, &event)
			if err != nil {
				fmt.Fprintf(os.Stderr, "jq filter error: %v\n", err)
				continue
			}
			if !ok {
				continue
			}

			count++
			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Fprintln(w, string(data))
			} else {
				printEvent(w, count, &event)
			}

		case <-ctx.Done():
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\n✅ Received %d events\n", count)
			}
			return nil
		}
	}
}

func printEvent(w io.Writer, n int, event *natspkg.TransactionEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Event #%d: %s %s\n", n, event.Operation, event.Status)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	if event.Signature != "" {
		fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	}
	fmt.Fprintf(w, "Signer:       %s\n", event.Signer)
	if event.Score != nil {
		fmt.Fprintf(w, "Score:        %d\n", *event.Score)
	}
	if event.Amount != nil {
		fmt.Fprintf(w, "Amount:       %g\n", *event.Amount)
	}
	fmt.Fprintf(w, "Confirmation: %s\n", event.ConfirmationLevel)
	if event.Reason != "" {
		fmt.Fprintf(w, "Reason:       %s\n", event.Reason)
	}
	fmt.Fprintf(w, "Submitted:    %s\n", event.SubmittedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\n")
}
