// Command shmqctl creates, publishes to, consumes from, and inspects a
// shmq shared-memory queue — the ambient CLI surface spec.md §1 treats as
// out of scope for the core protocol but still a working collaborator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shmqctl",
	Short: "Create, publish to, consume from, and inspect a shmq queue",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (required)")
	if err := rootCmd.MarkPersistentFlagRequired("config"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}
