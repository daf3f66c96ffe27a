// units.go
package max22200

import (
	"fmt"
	"math"
)

// Unit-based setpoint helpers. Each adjusts a single field of a channel's
// configuration register without disturbing the rest. HOLD updates ride the
// fast 8-bit path where the layout allows it: the HOLD field and the
// half-full-scale bit are the register's most-significant byte.

// SetHitCurrentMA sets a channel's HIT current in mA, clamped to the board's
// current limit.
func (c *Controller) SetHitCurrentMA(ch uint8, ma float64) error {
	ifs, err := c.prepCurrent(ch, &ma)
	if err != nil {
		return err
	}
	raw, err := c.readReg32(ChannelBank(ch))
	if err != nil {
		return err
	}
	raw &^= uint32(rawFieldMax) << cfgHitShift
	raw |= uint32(CurrentToRaw(ifs, ma)) << cfgHitShift
	return c.writeReg32(ChannelBank(ch), raw)
}

// SetHoldCurrentMA sets a channel's HOLD current in mA, clamped to the
// board's current limit. Only the register's MSB moves over the bus.
func (c *Controller) SetHoldCurrentMA(ch uint8, ma float64) error {
	ifs, err := c.prepCurrent(ch, &ma)
	if err != nil {
		return err
	}
	msb, err := c.readReg8(ChannelBank(ch))
	if err != nil {
		return err
	}
	msb = msb&0x80 | CurrentToRaw(ifs, ma)
	return c.writeReg8(ChannelBank(ch), msb)
}

// SetHitCurrentAmps is SetHitCurrentMA in amps.
func (c *Controller) SetHitCurrentAmps(ch uint8, amps float64) error {
	return c.SetHitCurrentMA(ch, amps*1000)
}

// SetHoldCurrentAmps is SetHoldCurrentMA in amps.
func (c *Controller) SetHoldCurrentAmps(ch uint8, amps float64) error {
	return c.SetHoldCurrentMA(ch, amps*1000)
}

// SetHitCurrentPercent sets the HIT current as a percentage of the board's
// full-scale current.
func (c *Controller) SetHitCurrentPercent(ch uint8, percent float64) error {
	ifs := c.board.FullScaleCurrentMA
	if ifs == 0 {
		return fmt.Errorf("%w: full-scale current not configured", ErrInvalidParameter)
	}
	return c.SetHitCurrentMA(ch, percent/100*float64(ifs))
}

// SetHoldCurrentPercent sets the HOLD current as a percentage of the board's
// full-scale current.
func (c *Controller) SetHoldCurrentPercent(ch uint8, percent float64) error {
	ifs := c.board.FullScaleCurrentMA
	if ifs == 0 {
		return fmt.Errorf("%w: full-scale current not configured", ErrInvalidParameter)
	}
	return c.SetHoldCurrentMA(ch, percent/100*float64(ifs))
}

// HitCurrentMA returns a channel's HIT setpoint converted to mA.
func (c *Controller) HitCurrentMA(ch uint8) (float64, error) {
	raw, err := c.channelRegister(ch)
	if err != nil {
		return 0, err
	}
	return CurrentFromRaw(c.board.FullScaleCurrentMA, uint8(raw>>cfgHitShift)&rawFieldMax), nil
}

// HoldCurrentMA returns a channel's HOLD setpoint converted to mA.
func (c *Controller) HoldCurrentMA(ch uint8) (float64, error) {
	raw, err := c.channelRegister(ch)
	if err != nil {
		return 0, err
	}
	return CurrentFromRaw(c.board.FullScaleCurrentMA, uint8(raw>>cfgHoldShift)&rawFieldMax), nil
}

// SetHitDutyPercent sets a channel's HIT duty cycle, clamped to the board's
// duty limit and to the usable window for the channel's chopping setup.
func (c *Controller) SetHitDutyPercent(ch uint8, percent float64) error {
	if err := c.prepDuty(ch, &percent); err != nil {
		return err
	}
	raw, err := c.readReg32(ChannelBank(ch))
	if err != nil {
		return err
	}
	percent = c.dutyWindow(raw).Clamp(percent)
	raw &^= uint32(rawFieldMax) << cfgHitShift
	raw |= uint32(DutyToRaw(percent)) << cfgHitShift
	return c.writeReg32(ChannelBank(ch), raw)
}

// SetHoldDutyPercent sets a channel's HOLD duty cycle with the same clamping
// as SetHitDutyPercent. The write moves only the register's MSB.
func (c *Controller) SetHoldDutyPercent(ch uint8, percent float64) error {
	if err := c.prepDuty(ch, &percent); err != nil {
		return err
	}
	raw, err := c.readReg32(ChannelBank(ch))
	if err != nil {
		return err
	}
	percent = c.dutyWindow(raw).Clamp(percent)
	msb := uint8(raw>>cfgHoldShift)&0x80 | DutyToRaw(percent)
	return c.writeReg8(ChannelBank(ch), msb)
}

// HitDutyPercent returns a channel's HIT setpoint converted to percent duty.
func (c *Controller) HitDutyPercent(ch uint8) (float64, error) {
	raw, err := c.channelRegister(ch)
	if err != nil {
		return 0, err
	}
	return DutyFromRaw(uint8(raw>>cfgHitShift) & rawFieldMax), nil
}

// HoldDutyPercent returns a channel's HOLD setpoint converted to percent
// duty.
func (c *Controller) HoldDutyPercent(ch uint8) (float64, error) {
	raw, err := c.channelRegister(ch)
	if err != nil {
		return 0, err
	}
	return DutyFromRaw(uint8(raw>>cfgHoldShift) & rawFieldMax), nil
}

// SetHitTimeMS sets a channel's HIT duration in ms. 0 disables the HIT
// phase; negative requests continuous HIT. Finite durations beyond the
// representable maximum for the channel's chopping frequency are rejected.
func (c *Controller) SetHitTimeMS(ch uint8, ms float64) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := requireChannel(ch); err != nil {
		return err
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("%w: hit time must be finite", ErrInvalidParameter)
	}
	raw, err := c.readReg32(ChannelBank(ch))
	if err != nil {
		return err
	}
	cf := ChopFreq((raw >> cfgFreqShift) & 0x03)
	if ms > 0 && ms < 1_000_000 {
		if max := MaxHitTimeMS(c.cached.Clock80KHz, cf); ms > max {
			return fmt.Errorf("%w: hit time %.1f ms exceeds %.1f ms maximum at this chopping frequency",
				ErrInvalidParameter, ms, max)
		}
	}
	raw &^= uint32(0xFF) << cfgHitTShift
	raw |= uint32(HitTimeToRaw(ms, c.cached.Clock80KHz, cf)) << cfgHitTShift
	return c.writeReg32(ChannelBank(ch), raw)
}

// HitTimeMS returns a channel's HIT duration in ms; ContinuousHitTime for a
// continuous HIT phase.
func (c *Controller) HitTimeMS(ch uint8) (float64, error) {
	raw, err := c.channelRegister(ch)
	if err != nil {
		return 0, err
	}
	cf := ChopFreq((raw >> cfgFreqShift) & 0x03)
	return HitTimeFromRaw(uint8(raw>>cfgHitTShift), c.cached.Clock80KHz, cf), nil
}

// ConfigureChannelCDR configures a channel for current regulation with
// sensible defaults (low side, slowest chopping, SPI triggering).
func (c *Controller) ConfigureChannelCDR(ch uint8, hitMA, holdMA, hitTimeMS float64) error {
	return c.ConfigureChannel(ch, ChannelConfig{
		Hit:       hitMA,
		Hold:      holdMA,
		HitTimeMS: hitTimeMS,
		DriveMode: DriveCurrent,
		SideMode:  SideLow,
		ChopFreq:  ChopDiv4,
	})
}

// ConfigureChannelVDR configures a channel for voltage (duty-cycle)
// regulation with the same defaults as ConfigureChannelCDR.
func (c *Controller) ConfigureChannelVDR(ch uint8, hitPercent, holdPercent, hitTimeMS float64) error {
	return c.ConfigureChannel(ch, ChannelConfig{
		Hit:       hitPercent,
		Hold:      holdPercent,
		HitTimeMS: hitTimeMS,
		DriveMode: DriveVoltage,
		SideMode:  SideLow,
		ChopFreq:  ChopDiv4,
	})
}

// DutyLimits returns the usable duty window for a channel's current chopping
// configuration.
func (c *Controller) DutyLimits(ch uint8) (DutyLimits, error) {
	raw, err := c.channelRegister(ch)
	if err != nil {
		return DutyLimits{}, err
	}
	return c.dutyWindow(raw), nil
}

func (c *Controller) channelRegister(ch uint8) (uint32, error) {
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	if err := requireChannel(ch); err != nil {
		return 0, err
	}
	return c.readReg32(ChannelBank(ch))
}

func (c *Controller) dutyWindow(raw uint32) DutyLimits {
	cf := ChopFreq((raw >> cfgFreqShift) & 0x03)
	return DutyLimitsFor(c.cached.Clock80KHz, cf, raw&cfgSRCBit != 0)
}

// prepCurrent validates a current setpoint update and applies the board
// clamp in place, returning the full-scale current.
func (c *Controller) prepCurrent(ch uint8, ma *float64) (uint32, error) {
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	if err := requireChannel(ch); err != nil {
		return 0, err
	}
	ifs := c.board.FullScaleCurrentMA
	if ifs == 0 {
		return 0, fmt.Errorf("%w: full-scale current not configured", ErrInvalidParameter)
	}
	if math.IsNaN(*ma) || math.IsInf(*ma, 0) {
		return 0, fmt.Errorf("%w: current must be finite", ErrInvalidParameter)
	}
	if lim := c.board.MaxCurrentMA; lim > 0 && *ma > float64(lim) {
		*ma = float64(lim)
	}
	return ifs, nil
}

// prepDuty validates a duty setpoint update and applies the board clamp in
// place.
func (c *Controller) prepDuty(ch uint8, percent *float64) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := requireChannel(ch); err != nil {
		return err
	}
	if math.IsNaN(*percent) || math.IsInf(*percent, 0) {
		return fmt.Errorf("%w: duty cycle must be finite", ErrInvalidParameter)
	}
	if lim := c.board.MaxDutyPercent; lim > 0 && *percent > float64(lim) {
		*percent = float64(lim)
	}
	return nil
}
