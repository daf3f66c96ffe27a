// protocol.go
package max22200

import "fmt"

// Two-phase bus transactions. Phase 1 shifts the command byte out with the
// command-select line asserted and captures the fault-flag byte the device
// answers with. Phase 2 moves the data payload with the line deasserted:
// 4 bytes least-significant-first on a write, 4 bytes most-significant-first
// on a read (the asymmetry is mandated by the device), or a single byte
// carrying the register's most-significant byte in fast 8-bit mode.
//
// Transfer failures surface as ErrCommunication with no partial state
// committed. A fault byte of 0x04 (COMER) is NOT a transaction failure
// here; Initialize owns the retry policy for it.

// writeCommand performs phase 1 and records the returned fault-flag byte.
func (c *Controller) writeCommand(bank uint8, write, mode8 bool) error {
	if err := c.tr.SetPin(PinCommand, true); err != nil {
		return fmt.Errorf("%w: command select: %v", ErrCommunication, err)
	}
	tx := [1]byte{CommandByte(bank, write, mode8)}
	var rx [1]byte
	err := c.tr.Transfer(tx[:], rx[:])
	// The line must drop before the data phase even when the transfer
	// failed.
	if perr := c.tr.SetPin(PinCommand, false); perr != nil && err == nil {
		err = perr
	}
	c.recordTransfer(err == nil)
	if err != nil {
		return fmt.Errorf("%w: command phase: %v", ErrCommunication, err)
	}
	c.lastFaultByte = rx[0]
	return nil
}

// writeData32 performs a 32-bit phase-2 write, least-significant byte first.
func (c *Controller) writeData32(value uint32) error {
	tx := [4]byte{
		byte(value),
		byte(value >> 8),
		byte(value >> 16),
		byte(value >> 24),
	}
	var rx [4]byte
	err := c.tr.Transfer(tx[:], rx[:])
	c.recordTransfer(err == nil)
	if err != nil {
		return fmt.Errorf("%w: data phase: %v", ErrCommunication, err)
	}
	return nil
}

// readData32 performs a 32-bit phase-2 read, most-significant byte first,
// shifting zeros out.
func (c *Controller) readData32() (uint32, error) {
	var tx [4]byte
	return c.readData32Tx(tx)
}

// readData32Tx is readData32 with caller-supplied outbound bytes. The fault
// register's selective clear rides the outbound bytes of the read.
func (c *Controller) readData32Tx(tx [4]byte) (uint32, error) {
	var rx [4]byte
	err := c.tr.Transfer(tx[:], rx[:])
	c.recordTransfer(err == nil)
	if err != nil {
		return 0, fmt.Errorf("%w: data phase: %v", ErrCommunication, err)
	}
	return uint32(rx[0])<<24 | uint32(rx[1])<<16 | uint32(rx[2])<<8 | uint32(rx[3]), nil
}

// writeData8 performs a fast phase-2 write of the register's MSB.
func (c *Controller) writeData8(value uint8) error {
	tx := [1]byte{value}
	var rx [1]byte
	err := c.tr.Transfer(tx[:], rx[:])
	c.recordTransfer(err == nil)
	if err != nil {
		return fmt.Errorf("%w: data phase: %v", ErrCommunication, err)
	}
	return nil
}

// readData8 performs a fast phase-2 read of the register's MSB.
func (c *Controller) readData8() (uint8, error) {
	var tx, rx [1]byte
	err := c.tr.Transfer(tx[:], rx[:])
	c.recordTransfer(err == nil)
	if err != nil {
		return 0, fmt.Errorf("%w: data phase: %v", ErrCommunication, err)
	}
	return rx[0], nil
}

// ---- full transactions (phase 1 + phase 2) ----

func (c *Controller) writeReg32(bank uint8, value uint32) error {
	if err := c.writeCommand(bank, true, false); err != nil {
		return err
	}
	return c.writeData32(value)
}

func (c *Controller) readReg32(bank uint8) (uint32, error) {
	if err := c.writeCommand(bank, false, false); err != nil {
		return 0, err
	}
	return c.readData32()
}

func (c *Controller) readReg32Tx(bank uint8, tx [4]byte) (uint32, error) {
	if err := c.writeCommand(bank, false, false); err != nil {
		return 0, err
	}
	return c.readData32Tx(tx)
}

func (c *Controller) writeReg8(bank uint8, value uint8) error {
	if err := c.writeCommand(bank, true, true); err != nil {
		return err
	}
	return c.writeData8(value)
}

func (c *Controller) readReg8(bank uint8) (uint8, error) {
	if err := c.writeCommand(bank, false, true); err != nil {
		return 0, err
	}
	return c.readData8()
}

// recordTransfer keeps the transfer counters current. Every bus transfer
// counts, failed or not.
func (c *Controller) recordTransfer(ok bool) {
	c.stats.TotalTransfers++
	if !ok {
		c.stats.FailedTransfers++
	}
}
