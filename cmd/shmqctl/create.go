package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vectorway/shmq/logging"
	"github.com/vectorway/shmq/queue"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or idempotently open) the queue's region and coupling signal",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCreate(); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func runCreate() error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	factory := queue.NewFactory()
	sub, err := factory.CreateSubscriber(cfg.Queue.Options())
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			log.Errorw("failed to close queue handle", "error", cerr)
		}
	}()

	log.Infow("queue ready", "name", cfg.Queue.Name, "bytes_capacity", cfg.Queue.BytesCapacity.String())
	return nil
}
