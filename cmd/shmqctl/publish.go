package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"

	"github.com/vectorway/shmq/logging"
	"github.com/vectorway/shmq/queue"
)

var publishCmdArgs struct {
	Wait time.Duration
}

var publishCmd = &cobra.Command{
	Use:   "publish [message]...",
	Short: "Enqueue one message per argument",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPublish(args); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	publishCmd.Flags().DurationVar(&publishCmdArgs.Wait, "wait", 2*time.Second,
		"how long to retry a full queue before giving up on a message")
}

func runPublish(messages []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	pub, err := queue.NewFactory().CreatePublisher(cfg.Queue.Options())
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() {
		if cerr := pub.Close(); cerr != nil {
			log.Errorw("failed to close publisher", "error", cerr)
		}
	}()

	for _, m := range messages {
		if err := publishOne(pub, []byte(m), publishCmdArgs.Wait); err != nil {
			return fmt.Errorf("failed to enqueue %q: %w", m, err)
		}
		log.Infow("enqueued message", "bytes", len(m))
	}
	return nil
}

// publishOne retries TryEnqueue against QueueFull with a bounded backoff —
// the queue being momentarily full is an expected, recoverable condition
// (spec.md §7), not one the CLI should surface as a hard error on the
// first attempt.
func publishOne(pub *queue.Publisher, body []byte, maxWait time.Duration) error {
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		ok, err := pub.TryEnqueue(body)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if ok {
			return struct{}{}, nil
		}
		return struct{}{}, fmt.Errorf("queue full")
	}, backoff.WithMaxElapsedTime(maxWait))
	return err
}
