// faultmon/types.go
package faultmon

import (
	"time"

	"github.com/tamzrod/max22200"
)

// Snapshot is the result of one poll cycle.
type Snapshot struct {
	At time.Time

	// Faults is the per-channel fault state read this cycle. Reading
	// clears the device's latch, so each snapshot carries only faults that
	// appeared since the previous one.
	Faults max22200.FaultStatus

	// Status is the device-wide register state read this cycle.
	Status max22200.StatusConfig

	Err error // non-nil means the poll cycle failed
}

// Faulted reports whether the cycle observed any fault, per-channel or
// device-wide.
func (s Snapshot) Faulted() bool {
	return s.Err == nil && (s.Faults.HasFault() || s.Status.HasFault())
}
