// transport.go
package max22200

import "time"

// Pin identifies one of the control lines the driver needs beyond the SPI
// bus itself.
type Pin uint8

const (
	// PinEnable is the device enable line. Inactive puts the device to
	// sleep.
	PinEnable Pin = iota

	// PinCommand is the command-select line. It must be active for the
	// whole command phase, including the instant chip select rises, and
	// inactive for the data phase.
	PinCommand

	// PinFault is the device's fault output (input to the host). Reads
	// true while a fault is signaled; the Transport hides the line's
	// electrical polarity.
	PinFault
)

// Transport is the physical bus the driver borrows for its whole lifetime.
// It is caller-owned: the driver never closes it, and it must stay valid
// through Deinitialize, which still needs bus access to put the device to
// sleep.
//
// All calls are blocking; timeouts and cancellation are the Transport's
// concern. Implementations translate pin identities to concrete GPIOs and
// handle chip-select timing inside Transfer.
type Transport interface {
	// Init prepares the bus and control pins.
	Init() error

	// Configure sets the SPI clock, mode (0-3), and bit order.
	Configure(speedHz uint32, mode uint8, msbFirst bool) error

	// Transfer performs one full-duplex transaction. tx and rx have the
	// same length; chip select is asserted for exactly this transaction.
	Transfer(tx, rx []byte) error

	// Ready reports whether the bus is initialized and usable.
	Ready() bool

	// Delay blocks for at least d.
	Delay(d time.Duration)

	// SetPin drives a control line.
	SetPin(pin Pin, active bool) error

	// ReadPin samples a control line.
	ReadPin(pin Pin) (bool, error)
}
