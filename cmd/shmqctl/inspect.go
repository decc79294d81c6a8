package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/vectorway/shmq/logging"
	"github.com/vectorway/shmq/region"
	"github.com/vectorway/shmq/ring"
	"github.com/vectorway/shmq/wire"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a queue's head/tail offsets and occupancy without joining the protocol",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

// runInspect attaches to an existing region and reads its header fields
// directly. It never CASes anything — spec.md §9 calls this read-only
// access out specifically so inspect can be run against a queue stuck in
// a crash-recovery scenario (a wedged Locked slot, an unreaped Aborted
// slot) without perturbing it.
func runInspect() error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	reg, err := region.Open(region.Config{
		Name:          cfg.Queue.Name,
		Dir:           cfg.Queue.Dir,
		BytesCapacity: cfg.Queue.BytesCapacity,
	})
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer func() {
		if cerr := reg.Close(); cerr != nil {
			log.Errorw("failed to close region", "error", cerr)
		}
	}()

	body := reg.Capacity() - wire.QueueHeaderSize
	buf := ring.NewBuffer(unsafe.Add(reg.Base(), wire.QueueHeaderSize), body)
	base := reg.Base()

	head := wire.LoadHead(base)
	tail := wire.LoadTail(base)
	occupied := tail - head
	occupancy := float64(occupied) / float64(body)

	fields := []any{
		"name", cfg.Queue.Name,
		"head_offset", head,
		"tail_offset", tail,
		"occupied_bytes", occupied,
		"body_capacity", body,
		"occupancy", fmt.Sprintf("%.2f%%", occupancy*100),
	}
	if head != tail {
		fields = append(fields, "head_slot_state", wire.LoadState(buf, head).String())
	}
	log.Infow("queue state", fields...)
	return nil
}
