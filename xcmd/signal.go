// Package xcmd provides the shutdown-signal plumbing used by shmqctl's
// long-running consume subcommand: racing a blocking queue operation
// against SIGINT/SIGTERM so a consumer loop exits cleanly instead of
// leaving a locked slot behind.
package xcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Interrupted wraps the os.Signal that ended a WaitInterrupted call so
// callers can tell a signal-driven shutdown apart from ctx.Err().
type Interrupted struct {
	os.Signal
}

func (m Interrupted) Error() string {
	return m.String()
}

// WaitInterrupted blocks until either SIGINT or SIGTERM signal is received or
// the provided context is canceled.
func WaitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)

	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case v := <-ch:
		return Interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}
