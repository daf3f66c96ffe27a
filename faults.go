// faults.go
package max22200

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Per-channel fault handling and plunger-movement detection.
//
// The FAULT register is clear-on-read. On parts with selective clear, the
// outbound bytes of the read pick which bits clear (bit high = clear);
// parts without it ignore the outbound bytes and clear everything, so
// selective clearing is best-effort.

// ReadFaults reads the per-channel FAULT register with zero-filled outbound
// bytes; on parts without selective clear the read clears every latched
// bit. Registered fault callbacks fire once per set bit, synchronously,
// before the call returns.
func (c *Controller) ReadFaults() (FaultStatus, error) {
	if err := c.requireReady(); err != nil {
		return FaultStatus{}, err
	}
	raw, err := c.readReg32(BankFault)
	if err != nil {
		return FaultStatus{}, err
	}
	f := DecodeFaults(raw)
	c.noteChannelFaults(f)
	return f, nil
}

// ClearAllFaults reads the FAULT register with every clear mask raised, so
// the latch empties on both hardware variants. Callbacks still fire for the
// cleared faults; the decoded result is discarded.
func (c *Controller) ClearAllFaults() error {
	_, err := c.ReadFaultsSelectiveClear(0xFF, 0xFF, 0xFF, 0xFF)
	return err
}

// ReadFaultsSelectiveClear reads the FAULT register, asking the device to
// clear only the fault bits set in the four per-type channel masks. On
// parts without selective clear the masks are ignored and every bit clears.
func (c *Controller) ReadFaultsSelectiveClear(ocp, hhf, olf, dpm uint8) (FaultStatus, error) {
	if err := c.requireReady(); err != nil {
		return FaultStatus{}, err
	}
	raw, err := c.readReg32Tx(BankFault, [4]byte{ocp, hhf, olf, dpm})
	if err != nil {
		return FaultStatus{}, err
	}
	f := DecodeFaults(raw)
	c.noteChannelFaults(f)
	return f, nil
}

// ClearChannelFaults clears every fault type for the channels set in
// channelMask, leaving other channels' faults latched where the part
// supports it.
func (c *Controller) ClearChannelFaults(channelMask uint8) (FaultStatus, error) {
	return c.ReadFaultsSelectiveClear(channelMask, channelMask, channelMask, channelMask)
}

// ClearFaultFlags reads STATUS for its flag-clearing side effect (UVM) and
// discards the snapshot.
func (c *Controller) ClearFaultFlags() error {
	_, err := c.ReadStatus()
	return err
}

// noteChannelFaults counts set bits and dispatches callbacks, channel by
// channel, OCP first.
func (c *Controller) noteChannelFaults(f FaultStatus) {
	if !f.HasFault() {
		return
	}
	for _, m := range []struct {
		mask uint8
		ft   FaultType
	}{
		{f.Overcurrent, FaultOvercurrent},
		{f.HitNotReached, FaultHitNotReached},
		{f.OpenLoad, FaultOpenLoad},
		{f.PlungerMovement, FaultPlungerMovement},
	} {
		for ch := uint8(0); ch < NumChannels; ch++ {
			if m.mask&(1<<ch) == 0 {
				continue
			}
			c.stats.FaultEvents++
			c.log.Warn("channel fault",
				zap.Uint8("channel", ch),
				zap.Stringer("fault", m.ft))
			if c.onFault != nil {
				c.onFault(ch, m.ft)
			}
		}
	}
}

// ---- PLUNGER-MOVEMENT DETECTION ----

// ReadDPMConfig reads the global plunger-movement detection parameters.
func (c *Controller) ReadDPMConfig() (DPMConfig, error) {
	if err := c.requireReady(); err != nil {
		return DPMConfig{}, err
	}
	raw, err := c.readReg32(BankCfgDPM)
	if err != nil {
		return DPMConfig{}, err
	}
	return DecodeDPMConfig(raw), nil
}

// WriteDPMConfig writes the global plunger-movement detection parameters.
// Fields outside their register ranges are rejected rather than silently
// truncated.
func (c *Controller) WriteDPMConfig(cfg DPMConfig) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if cfg.StartCurrent > rawFieldMax {
		return fmt.Errorf("%w: DPM start current %d exceeds %d", ErrInvalidParameter, cfg.StartCurrent, rawFieldMax)
	}
	if cfg.Debounce > 15 {
		return fmt.Errorf("%w: DPM debounce %d exceeds 15 periods", ErrInvalidParameter, cfg.Debounce)
	}
	if cfg.DipThreshold > 15 {
		return fmt.Errorf("%w: DPM dip threshold %d exceeds 15 steps", ErrInvalidParameter, cfg.DipThreshold)
	}
	return c.writeReg32(BankCfgDPM, cfg.Encode())
}

// ConfigureDPM sets plunger-movement detection from engineering units:
// starting current and dip threshold in mA (scaled by the board full-scale
// current) and debounce in ms (counted in periods of the slowest 25 kHz
// chopping). Values that do not fit the register fields are rejected.
func (c *Controller) ConfigureDPM(startMA, dipThresholdMA, debounceMS float64) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	ifs := c.board.FullScaleCurrentMA
	if ifs == 0 {
		return fmt.Errorf("%w: full-scale current not configured", ErrInvalidParameter)
	}
	if startMA < 0 || dipThresholdMA < 0 || debounceMS < 0 {
		return fmt.Errorf("%w: DPM parameters must be non-negative", ErrInvalidParameter)
	}

	dip := CurrentToRaw(ifs, dipThresholdMA)
	if dip > 15 {
		return fmt.Errorf("%w: DPM dip threshold %.1f mA exceeds the 4-bit range", ErrInvalidParameter, dipThresholdMA)
	}
	// 25 kHz chopping: one period per 0.04 ms.
	periods := math.Round(debounceMS * 25)
	if periods > 15 {
		return fmt.Errorf("%w: DPM debounce %.2f ms exceeds the 4-bit range", ErrInvalidParameter, debounceMS)
	}

	return c.writeReg32(BankCfgDPM, DPMConfig{
		StartCurrent: CurrentToRaw(ifs, startMA),
		Debounce:     uint8(periods),
		DipThreshold: dip,
	}.Encode())
}
