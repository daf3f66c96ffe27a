// transport_test.go
package max22200

import (
	"errors"
	"testing"
	"time"
)

// fakeTransport models the device's two-phase protocol well enough to drive
// the Controller: a command phase (CMD line high) latches the pending
// access and answers with a scripted fault byte; the following data phase
// moves register bytes in the documented order.
type fakeTransport struct {
	regs map[uint8]uint32

	// faultBytes is consumed one per command phase; when exhausted the
	// device answers 0x00.
	faultBytes []uint8

	initErr     error
	transferErr error

	confSpeed uint32
	confMode  uint8
	confMSB   bool

	pins      map[Pin]bool
	transfers []fakeXfer
	delays    []time.Duration

	pendBank  uint8
	pendWrite bool
	pendMode8 bool
}

// fakeXfer records one Transfer with the CMD line level at the time.
type fakeXfer struct {
	tx, rx  []byte
	cmdHigh bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		regs: make(map[uint8]uint32),
		pins: make(map[Pin]bool),
	}
}

func (f *fakeTransport) Init() error {
	return f.initErr
}

func (f *fakeTransport) Configure(speedHz uint32, mode uint8, msbFirst bool) error {
	f.confSpeed = speedHz
	f.confMode = mode
	f.confMSB = msbFirst
	return nil
}

func (f *fakeTransport) Ready() bool { return true }

func (f *fakeTransport) Delay(d time.Duration) {
	f.delays = append(f.delays, d)
}

func (f *fakeTransport) SetPin(pin Pin, active bool) error {
	f.pins[pin] = active
	return nil
}

func (f *fakeTransport) ReadPin(pin Pin) (bool, error) {
	return f.pins[pin], nil
}

func (f *fakeTransport) Transfer(tx, rx []byte) error {
	rec := fakeXfer{
		tx:      append([]byte(nil), tx...),
		cmdHigh: f.pins[PinCommand],
	}

	if f.transferErr != nil {
		f.transfers = append(f.transfers, rec)
		return f.transferErr
	}

	if f.pins[PinCommand] {
		// Command phase.
		cmd := tx[0]
		f.pendBank = (cmd >> 1) & 0x0F
		f.pendWrite = cmd&0x80 != 0
		f.pendMode8 = cmd&0x01 != 0
		rx[0] = f.nextFaultByte()
	} else {
		// Data phase.
		f.dataPhase(tx, rx)
	}

	rec.rx = append([]byte(nil), rx...)
	f.transfers = append(f.transfers, rec)
	return nil
}

func (f *fakeTransport) nextFaultByte() uint8 {
	if len(f.faultBytes) == 0 {
		return 0
	}
	b := f.faultBytes[0]
	f.faultBytes = f.faultBytes[1:]
	return b
}

func (f *fakeTransport) dataPhase(tx, rx []byte) {
	reg := f.regs[f.pendBank]

	switch {
	case f.pendWrite && f.pendMode8:
		f.regs[f.pendBank] = reg&0x00FFFFFF | uint32(tx[0])<<24

	case f.pendWrite:
		// Least-significant byte first.
		f.regs[f.pendBank] = uint32(tx[0]) | uint32(tx[1])<<8 |
			uint32(tx[2])<<16 | uint32(tx[3])<<24

	case f.pendMode8:
		rx[0] = uint8(reg >> 24)

	default:
		// Most-significant byte first.
		rx[0] = uint8(reg >> 24)
		rx[1] = uint8(reg >> 16)
		rx[2] = uint8(reg >> 8)
		rx[3] = uint8(reg)

		if f.pendBank == BankFault {
			f.clearFaults(tx)
		}
	}
}

// clearFaults models a selective-clear part: a high mask bit clears the
// matching fault bit; all-zero outbound bytes clear the whole latch the way
// the base part does.
func (f *fakeTransport) clearFaults(tx []byte) {
	mask := uint32(tx[0])<<24 | uint32(tx[1])<<16 | uint32(tx[2])<<8 | uint32(tx[3])
	if mask == 0 {
		f.regs[BankFault] = 0
		return
	}
	f.regs[BankFault] &^= mask
}

// dataTransfers filters the record down to data phases.
func (f *fakeTransport) dataTransfers() []fakeXfer {
	var out []fakeXfer
	for _, x := range f.transfers {
		if !x.cmdHigh {
			out = append(out, x)
		}
	}
	return out
}

// readyController returns an initialized controller on a fresh fake, with
// the transfer record cleared so tests see only their own traffic.
func readyController(t *testing.T, board BoardConfig) (*Controller, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c := NewWithBoard(tr, board)
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() err=%v", err)
	}
	tr.transfers = nil
	c.ResetStatistics()
	return c, tr
}

var errBus = errors.New("bus broken")
