// errors.go
package max22200

import "errors"

// Error taxonomy for the driver. Every fallible operation returns one of
// these (wrapped with context); the codec never fails.
var (
	// ErrInitialization is returned when the transport could not be
	// initialized or configured, or an operation requires an initialized
	// driver.
	ErrInitialization = errors.New("max22200: initialization error")

	// ErrCommunication is returned when a transport transfer failed, or the
	// COMER fault byte persisted through all initialization retries.
	ErrCommunication = errors.New("max22200: communication error")

	// ErrInvalidParameter is returned for any out-of-range input. It is
	// always raised before touching the bus.
	ErrInvalidParameter = errors.New("max22200: invalid parameter")

	// ErrHardwareFault is reserved for caller-driven interpretation of
	// decoded fault flags. The protocol and codec never raise it.
	ErrHardwareFault = errors.New("max22200: hardware fault")

	// ErrTimeout is reserved; timeouts are delegated to the Transport.
	ErrTimeout = errors.New("max22200: timeout")
)
