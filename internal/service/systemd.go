// Package service restarts the AdGuard Home systemd unit so it picks up a
// patched configuration.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// ErrRestart is returned when the unit could not be restarted.
var ErrRestart = errors.New("cannot restart unit")

// jobDone is the result systemd reports for a successfully finished job.
const jobDone = "done"

// Restarter restarts a named unit.
type Restarter interface {
	Restart(ctx context.Context, unit string) error
}

// Systemd restarts units through the system manager's D-Bus API.
type Systemd struct{}

// Restart queues a restart job for unit, replacing any pending job, and
// waits until systemd reports the job result or ctx is done.
func (Systemd) Restart(ctx context.Context, unit string) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("%w %s: cannot connect to systemd: %w", ErrRestart, unit, err)
	}
	defer conn.Close()

	results := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, unit, "replace", results); err != nil {
		return fmt.Errorf("%w %s: %w", ErrRestart, unit, err)
	}
	return waitJob(ctx, unit, results)
}

func waitJob(ctx context.Context, unit string, results <-chan string) error {
	select {
	case result := <-results:
		if result != jobDone {
			return fmt.Errorf("%w %s: job finished with result %q", ErrRestart, unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w %s: %w", ErrRestart, unit, ctx.Err())
	}
}
