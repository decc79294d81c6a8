package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vectorway/shmq/logging"
	"github.com/vectorway/shmq/queue"
	"github.com/vectorway/shmq/xcmd"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Block, printing each dequeued message until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConsume(); err != nil {
			var interrupted xcmd.Interrupted
			if errors.As(err, &interrupted) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func runConsume() error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	sub, err := queue.NewFactory().CreateSubscriber(cfg.Queue.Options())
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			log.Errorw("failed to close subscriber", "error", cerr)
		}
	}()

	wg, ctx := errgroup.WithContext(context.Background())
	wg.Go(func() error {
		for {
			msg, err := sub.Dequeue(ctx, nil)
			if err != nil {
				return err
			}
			log.Infow("dequeued message", "bytes", len(msg), "body", string(msg))
		}
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}
