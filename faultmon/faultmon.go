// Package faultmon polls a driver's fault state on a fixed clock and emits
// snapshots on a channel. It owns no policy: deciding what a fault means is
// the consumer's job.
package faultmon

import (
	"errors"
	"time"

	"github.com/tamzrod/max22200"
)

// Client abstracts the driver operations the monitor needs.
// The monitor depends on reads only.
type Client interface {
	ReadFaults() (max22200.FaultStatus, error)
	ReadStatus() (max22200.StatusConfig, error)
}

// Config is the minimal runtime config the monitor needs.
type Config struct {
	Interval time.Duration
}

// Monitor is a dumb, clock-driven reader.
type Monitor struct {
	cfg    Config
	client Client
}

// New creates a monitor with immutable config.
func New(cfg Config, client Client) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("faultmon: interval must be > 0")
	}
	if client == nil {
		return nil, errors.New("faultmon: client required")
	}
	return &Monitor{cfg: cfg, client: client}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (m *Monitor) PollOnce() Snapshot {
	snap := Snapshot{At: time.Now()}

	faults, err := m.client.ReadFaults()
	if err != nil {
		snap.Err = err
		return snap
	}
	status, err := m.client.ReadStatus()
	if err != nil {
		snap.Err = err
		return snap
	}

	// Commit only if all reads succeeded
	snap.Faults = faults
	snap.Status = status
	return snap
}
