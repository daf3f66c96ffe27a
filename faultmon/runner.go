// faultmon/runner.go
package faultmon

import (
	"context"
	"time"
)

// Run starts the ticker loop and emits a Snapshot on the provided channel
// every interval. One goroutine per device. No overlap. No retries.
func (m *Monitor) Run(ctx context.Context, out chan<- Snapshot) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			out <- m.PollOnce()
		}
	}
}
