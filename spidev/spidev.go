// Package spidev provides a max22200.Transport backed by periph.io, for
// Linux hosts with a spidev port and memory-mapped or sysfs GPIOs.
package spidev

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/tamzrod/max22200"
)

// Config names the host resources the transport binds to. Pin names are
// gpioreg names ("GPIO23", "23", ...).
type Config struct {
	// Port is the spireg name of the SPI port. Empty selects the first
	// available port.
	Port string

	// CommandPin drives the device's CMD line.
	CommandPin string

	// EnablePin drives the device's ENABLE line.
	EnablePin string

	// FaultPin reads the device's fault output. Optional; leave empty when
	// the line is not wired, ReadPin then reports no fault.
	FaultPin string

	// FaultActiveLow marks the fault output as active-low (the usual
	// open-drain wiring with a pull-up).
	FaultActiveLow bool
}

// Transport is a max22200.Transport over periph.io. Not safe for concurrent
// use, matching the driver's own contract.
type Transport struct {
	cfg Config

	port  spi.PortCloser
	conn  spi.Conn
	cmd   gpio.PinIO
	en    gpio.PinIO
	fault gpio.PinIO // nil when unwired
}

var _ max22200.Transport = (*Transport)(nil)

// New returns an unopened transport. Call Init (the driver's Initialize
// does) before use.
func New(cfg Config) *Transport {
	return &Transport{cfg: cfg}
}

// Init loads the host drivers, opens the SPI port, and claims the control
// pins. The command and enable lines start inactive.
func (t *Transport) Init() error {
	if t.port != nil {
		return nil
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("spidev: host init: %w", err)
	}

	port, err := spireg.Open(t.cfg.Port)
	if err != nil {
		return fmt.Errorf("spidev: open port %q: %w", t.cfg.Port, err)
	}

	cmd := gpioreg.ByName(t.cfg.CommandPin)
	if cmd == nil {
		port.Close()
		return fmt.Errorf("spidev: command pin %q not found", t.cfg.CommandPin)
	}
	en := gpioreg.ByName(t.cfg.EnablePin)
	if en == nil {
		port.Close()
		return fmt.Errorf("spidev: enable pin %q not found", t.cfg.EnablePin)
	}
	var fault gpio.PinIO
	if t.cfg.FaultPin != "" {
		if fault = gpioreg.ByName(t.cfg.FaultPin); fault == nil {
			port.Close()
			return fmt.Errorf("spidev: fault pin %q not found", t.cfg.FaultPin)
		}
	}

	if err := cmd.Out(gpio.Low); err != nil {
		port.Close()
		return fmt.Errorf("spidev: command pin: %w", err)
	}
	if err := en.Out(gpio.Low); err != nil {
		port.Close()
		return fmt.Errorf("spidev: enable pin: %w", err)
	}
	if fault != nil {
		if err := fault.In(gpio.PullUp, gpio.NoEdge); err != nil {
			port.Close()
			return fmt.Errorf("spidev: fault pin: %w", err)
		}
	}

	t.port = port
	t.cmd = cmd
	t.en = en
	t.fault = fault
	return nil
}

// Configure connects to the port at the given clock, SPI mode, and bit
// order. May be called again to retune the bus.
func (t *Transport) Configure(speedHz uint32, mode uint8, msbFirst bool) error {
	if t.port == nil {
		return errors.New("spidev: not initialized")
	}
	m := spi.Mode(mode & 0x03)
	if !msbFirst {
		m |= spi.LSBFirst
	}
	conn, err := t.port.Connect(physic.Frequency(speedHz)*physic.Hertz, m, 8)
	if err != nil {
		return fmt.Errorf("spidev: connect: %w", err)
	}
	t.conn = conn
	return nil
}

// Transfer performs one full-duplex transaction; chip select frames exactly
// this transaction.
func (t *Transport) Transfer(tx, rx []byte) error {
	if t.conn == nil {
		return errors.New("spidev: not configured")
	}
	return t.conn.Tx(tx, rx)
}

// Ready reports whether the bus is open and configured.
func (t *Transport) Ready() bool {
	return t.conn != nil
}

// Delay blocks for at least d.
func (t *Transport) Delay(d time.Duration) {
	time.Sleep(d)
}

// SetPin drives a control line.
func (t *Transport) SetPin(pin max22200.Pin, active bool) error {
	p, err := t.outPin(pin)
	if err != nil {
		return err
	}
	return p.Out(gpio.Level(active))
}

// ReadPin samples a control line, normalizing the fault line's polarity.
func (t *Transport) ReadPin(pin max22200.Pin) (bool, error) {
	switch pin {
	case max22200.PinFault:
		if t.fault == nil {
			return false, nil
		}
		level := t.fault.Read()
		if t.cfg.FaultActiveLow {
			return level == gpio.Low, nil
		}
		return level == gpio.High, nil
	case max22200.PinCommand, max22200.PinEnable:
		p, err := t.outPin(pin)
		if err != nil {
			return false, err
		}
		return p.Read() == gpio.High, nil
	default:
		return false, fmt.Errorf("spidev: unknown pin %d", pin)
	}
}

// Close releases the SPI port. The driver never calls this; the owner does,
// after Deinitialize.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.conn = nil
	return err
}

func (t *Transport) outPin(pin max22200.Pin) (gpio.PinIO, error) {
	switch pin {
	case max22200.PinCommand:
		if t.cmd == nil {
			return nil, errors.New("spidev: not initialized")
		}
		return t.cmd, nil
	case max22200.PinEnable:
		if t.en == nil {
			return nil, errors.New("spidev: not initialized")
		}
		return t.en, nil
	default:
		return nil, fmt.Errorf("spidev: pin %d is not an output", pin)
	}
}
