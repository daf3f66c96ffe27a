// max22200.go
package max22200

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// State is the driver lifecycle state.
type State uint8

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

const (
	// powerUpDelay is the wait after raising the enable line before the
	// bus may be used (tEN, >= 0.5 ms).
	powerUpDelay = 500 * time.Microsecond

	// initAttempts bounds the COMER retry loop in Initialize. No other
	// operation retries.
	initAttempts = 3

	// spiMode0 is the only clocking the device supports: idle-low clock,
	// sample on the leading edge.
	spiMode0 = 0
)

// Controller drives one device over a caller-owned Transport. It is not
// safe for concurrent use from multiple goroutines; serialize externally.
type Controller struct {
	tr  Transport
	log *zap.Logger

	state  State
	board  BoardConfig
	cached StatusConfig // kept in sync on every STATUS read/write

	stats         Statistics
	startedAt     time.Time
	lastFaultByte uint8

	onFault FaultCallback
	onState StateChangeCallback
}

// New returns an uninitialized controller bound to tr. Set the board
// configuration before using current-regulation channels.
func New(tr Transport) *Controller {
	return &Controller{tr: tr, log: zap.NewNop()}
}

// NewWithBoard is New with the board configuration supplied up front.
func NewWithBoard(tr Transport, board BoardConfig) *Controller {
	c := New(tr)
	c.board = board
	return c
}

// SetLogger attaches a structured logger. nil restores the no-op logger.
func (c *Controller) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	c.log = l
}

// SetBoardConfig replaces the board scaling and safety clamps.
func (c *Controller) SetBoardConfig(board BoardConfig) {
	c.board = board
}

// BoardConfig returns the current board configuration.
func (c *Controller) BoardConfig() BoardConfig {
	return c.board
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Initialized reports whether the controller is ready for channel
// operations.
func (c *Controller) Initialized() bool {
	return c.state == StateReady
}

// LastFaultByte returns the fault-flag byte captured during the most recent
// command phase. A value of FaultByteCOMER means the device misread the
// previous transaction.
func (c *Controller) LastFaultByte() uint8 {
	return c.lastFaultByte
}

// SetFaultCallback registers a synchronous observer for decoded per-channel
// faults.
func (c *Controller) SetFaultCallback(cb FaultCallback) {
	c.onFault = cb
}

// SetStateChangeCallback registers a synchronous observer for channel
// on/off transitions.
func (c *Controller) SetStateChangeCallback(cb StateChangeCallback) {
	c.onState = cb
}

// ---- LIFECYCLE ----

// Initialize brings the device up: configure the bus (mode 0, MSB first),
// raise the enable line, wait the power-up delay, then read STATUS (clears
// the power-on undervoltage flag), write STATUS with ACTIVE set and all
// channels off, and re-read to confirm. The read/write sequence retries up
// to three times while the device reports a communication error; any
// transport failure aborts immediately. Both exits deassert the enable
// line.
func (c *Controller) Initialize() error {
	if c.state == StateReady {
		return nil
	}
	c.state = StateInitializing

	if err := c.tr.Init(); err != nil {
		c.state = StateUninitialized
		return fmt.Errorf("%w: transport init: %v", ErrInitialization, err)
	}
	if err := c.tr.Configure(MaxSPIFreqStandalone, spiMode0, true); err != nil {
		c.state = StateUninitialized
		return fmt.Errorf("%w: transport configure: %v", ErrInitialization, err)
	}
	if err := c.tr.SetPin(PinEnable, true); err != nil {
		c.state = StateUninitialized
		return fmt.Errorf("%w: enable pin: %v", ErrInitialization, err)
	}
	c.tr.Delay(powerUpDelay)

	for attempt := 1; attempt <= initAttempts; attempt++ {
		// Clear UVM and pick up the power-on state.
		if _, err := c.readReg32(BankStatus); err != nil {
			return c.abortInitialize(err)
		}
		if c.lastFaultByte == FaultByteCOMER {
			c.log.Warn("communication error during status read, retrying",
				zap.Int("attempt", attempt))
			continue
		}

		st := StatusConfig{
			Active:                   true,
			CommunicationErrorMasked: true,
		}
		if err := c.writeReg32(BankStatus, st.Encode()); err != nil {
			return c.abortInitialize(err)
		}
		if c.lastFaultByte == FaultByteCOMER {
			c.log.Warn("communication error during status write, retrying",
				zap.Int("attempt", attempt))
			continue
		}
		c.cached = st

		// Confirm and refresh the cache from the device's view.
		raw, err := c.readReg32(BankStatus)
		if err != nil {
			return c.abortInitialize(err)
		}
		if c.lastFaultByte == FaultByteCOMER {
			c.log.Warn("communication error during status readback, retrying",
				zap.Int("attempt", attempt))
			continue
		}
		c.cached = DecodeStatus(raw)

		c.state = StateReady
		c.startedAt = time.Now()
		c.log.Info("device initialized",
			zap.Bool("clock_80khz", c.cached.Clock80KHz),
			zap.Uint32("full_scale_ma", c.board.FullScaleCurrentMA))
		return nil
	}

	return c.abortInitialize(fmt.Errorf(
		"%w: communication error persisted through %d attempts",
		ErrCommunication, initAttempts))
}

// abortInitialize deasserts the enable line and returns to the
// uninitialized state, passing err through.
func (c *Controller) abortInitialize(err error) error {
	_ = c.tr.SetPin(PinEnable, false)
	c.state = StateUninitialized
	return err
}

// Deinitialize puts the device to sleep: all channels off via the fast
// write, ACTIVE cleared, enable line dropped. Idempotent; a no-op when not
// initialized. Teardown continues past bus errors so the enable line always
// drops, and the first error is returned.
func (c *Controller) Deinitialize() error {
	if c.state != StateReady {
		return nil
	}

	var firstErr error
	if err := c.setChannelMask(0); err != nil {
		firstErr = err
	}
	c.cached.Active = false
	if err := c.writeReg32(BankStatus, c.cached.Encode()); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.tr.SetPin(PinEnable, false); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: enable pin: %v", ErrCommunication, err)
	}
	c.state = StateUninitialized
	c.log.Info("device deinitialized")
	return firstErr
}

func (c *Controller) requireReady() error {
	if c.state != StateReady {
		return fmt.Errorf("%w: driver not initialized", ErrInitialization)
	}
	return nil
}

// IsValidChannel reports whether ch addresses one of the eight channels.
func IsValidChannel(ch uint8) bool {
	return ch < NumChannels
}

func requireChannel(ch uint8) error {
	if !IsValidChannel(ch) {
		return fmt.Errorf("%w: channel %d out of range", ErrInvalidParameter, ch)
	}
	return nil
}

func requireBank(bank uint8) error {
	if bank > BankCfgDPM {
		return fmt.Errorf("%w: bank 0x%02X out of range", ErrInvalidParameter, bank)
	}
	return nil
}

// ---- STATUS ----

// ReadStatus reads the STATUS register, refreshes the cached snapshot, and
// returns the decoded state. Reading STATUS clears the undervoltage flag on
// the device.
func (c *Controller) ReadStatus() (StatusConfig, error) {
	if err := c.requireReady(); err != nil {
		return StatusConfig{}, err
	}
	raw, err := c.readReg32(BankStatus)
	if err != nil {
		return StatusConfig{}, err
	}
	st := DecodeStatus(raw)
	c.cached = st
	c.noteDeviceFaults(st)
	return st, nil
}

// WriteStatus writes the writable STATUS fields and refreshes the cache.
// Pair-mode bits may only change while both channels of the pair are off;
// the caller upholds that precondition.
func (c *Controller) WriteStatus(st StatusConfig) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.writeReg32(BankStatus, st.Encode()); err != nil {
		return err
	}
	c.cached = st
	return nil
}

// CachedStatus returns the STATUS snapshot from the most recent read or
// write, without touching the bus.
func (c *Controller) CachedStatus() StatusConfig {
	return c.cached
}

// noteDeviceFaults counts freshly observed device-wide flags.
func (c *Controller) noteDeviceFaults(st StatusConfig) {
	for _, flag := range []struct {
		set bool
		ft  FaultType
	}{
		{st.Overtemperature, FaultOvertemperature},
		{st.Undervoltage, FaultUndervoltage},
		{st.CommunicationError, FaultCommunication},
	} {
		if flag.set {
			c.stats.FaultEvents++
			c.log.Warn("device fault flag set", zap.Stringer("fault", flag.ft))
		}
	}
}

// ---- CHANNEL CONFIGURATION ----

// ConfigureChannel validates and writes one channel's configuration.
// Rejected before any bus access: out-of-range channels, current regulation
// without a board full-scale current or on the high side, slew-rate control
// at or above 50 kHz chopping, and HIT times that are not finite or exceed
// the representable maximum for the chopping frequency. Setpoints are
// clamped to the board's safety limits before encoding.
func (c *Controller) ConfigureChannel(ch uint8, cfg ChannelConfig) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := requireChannel(ch); err != nil {
		return err
	}
	if err := c.validateChannelConfig(cfg); err != nil {
		return err
	}
	cfg = c.applyBoardLimits(cfg)
	reg := cfg.Encode(c.board.FullScaleCurrentMA, c.cached.Clock80KHz)
	if err := c.writeReg32(ChannelBank(ch), reg); err != nil {
		return err
	}
	c.log.Debug("channel configured",
		zap.Uint8("channel", ch),
		zap.Uint32("register", reg))
	return nil
}

// ChannelConfig reads one channel's configuration back, reconstructing
// engineering units from the board scale and the cached clock base.
func (c *Controller) ChannelConfig(ch uint8) (ChannelConfig, error) {
	if err := c.requireReady(); err != nil {
		return ChannelConfig{}, err
	}
	if err := requireChannel(ch); err != nil {
		return ChannelConfig{}, err
	}
	raw, err := c.readReg32(ChannelBank(ch))
	if err != nil {
		return ChannelConfig{}, err
	}
	return DecodeChannelConfig(raw, c.board.FullScaleCurrentMA, c.cached.Clock80KHz), nil
}

// ConfigureAllChannels writes every channel's configuration, failing fast
// on the first error.
func (c *Controller) ConfigureAllChannels(configs [NumChannels]ChannelConfig) error {
	for ch := uint8(0); ch < NumChannels; ch++ {
		if err := c.ConfigureChannel(ch, configs[ch]); err != nil {
			return err
		}
	}
	return nil
}

// AllChannelConfigs reads every channel's configuration.
func (c *Controller) AllChannelConfigs() ([NumChannels]ChannelConfig, error) {
	var out [NumChannels]ChannelConfig
	for ch := uint8(0); ch < NumChannels; ch++ {
		cfg, err := c.ChannelConfig(ch)
		if err != nil {
			return out, err
		}
		out[ch] = cfg
	}
	return out, nil
}

func (c *Controller) validateChannelConfig(cfg ChannelConfig) error {
	if cfg.DriveMode == DriveCurrent && cfg.SideMode == SideHigh {
		return fmt.Errorf("%w: current regulation requires low-side drive", ErrInvalidParameter)
	}
	if cfg.DriveMode == DriveCurrent && c.board.FullScaleCurrentMA == 0 {
		return fmt.Errorf("%w: full-scale current not configured", ErrInvalidParameter)
	}
	if cfg.SlewRateControl && ChopFreqKHz(c.cached.Clock80KHz, cfg.ChopFreq) >= 50 {
		return fmt.Errorf("%w: slew-rate control requires chopping below 50 kHz", ErrInvalidParameter)
	}
	if math.IsNaN(cfg.HitTimeMS) || math.IsInf(cfg.HitTimeMS, 0) {
		return fmt.Errorf("%w: hit time must be finite", ErrInvalidParameter)
	}
	if cfg.HitTimeMS > 0 && cfg.HitTimeMS < 1_000_000 {
		if max := MaxHitTimeMS(c.cached.Clock80KHz, cfg.ChopFreq); cfg.HitTimeMS > max {
			return fmt.Errorf("%w: hit time %.1f ms exceeds %.1f ms maximum at this chopping frequency",
				ErrInvalidParameter, cfg.HitTimeMS, max)
		}
	}
	return nil
}

func (c *Controller) applyBoardLimits(cfg ChannelConfig) ChannelConfig {
	switch cfg.DriveMode {
	case DriveCurrent:
		if lim := c.board.MaxCurrentMA; lim > 0 {
			if cfg.Hit > float64(lim) {
				cfg.Hit = float64(lim)
			}
			if cfg.Hold > float64(lim) {
				cfg.Hold = float64(lim)
			}
		}
	case DriveVoltage:
		if lim := c.board.MaxDutyPercent; lim > 0 {
			if cfg.Hit > float64(lim) {
				cfg.Hit = float64(lim)
			}
			if cfg.Hold > float64(lim) {
				cfg.Hold = float64(lim)
			}
		}
	}
	return cfg
}

// ---- CHANNEL ENABLE (fast 8-bit path) ----
//
// Toggling channels never does a full 32-bit status read-modify-write: the
// cached on-mask is updated and a single fast 8-bit write moves it to the
// device.

// EnableChannel turns one channel on.
func (c *Controller) EnableChannel(ch uint8) error {
	return c.SetChannelEnabled(ch, true)
}

// DisableChannel turns one channel off.
func (c *Controller) DisableChannel(ch uint8) error {
	return c.SetChannelEnabled(ch, false)
}

// SetChannelEnabled turns one channel on or off.
func (c *Controller) SetChannelEnabled(ch uint8, on bool) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := requireChannel(ch); err != nil {
		return err
	}
	mask := c.cached.ChannelsOnMask
	if on {
		mask |= 1 << ch
	} else {
		mask &^= 1 << ch
	}
	return c.setChannelMask(mask)
}

// EnableAllChannels turns every channel on.
func (c *Controller) EnableAllChannels() error {
	return c.SetChannelMask(0xFF)
}

// DisableAllChannels turns every channel off.
func (c *Controller) DisableAllChannels() error {
	return c.SetChannelMask(0x00)
}

// SetChannelMask sets all eight on/off bits at once (bit N = channel N).
func (c *Controller) SetChannelMask(mask uint8) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	return c.setChannelMask(mask)
}

// SetFullBridgeState drives a channel pair configured as an H-bridge into
// one of the four bridge states, preserving the other pairs' bits.
func (c *Controller) SetFullBridgeState(pair uint8, state FullBridgeState) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if pair > 3 {
		return fmt.Errorf("%w: pair %d out of range", ErrInvalidParameter, pair)
	}
	if state > BridgeBrake {
		return fmt.Errorf("%w: bridge state %d", ErrInvalidParameter, state)
	}
	shift := pair * 2
	mask := c.cached.ChannelsOnMask&^(0x03<<shift) | uint8(state)<<shift
	return c.setChannelMask(mask)
}

func (c *Controller) setChannelMask(mask uint8) error {
	old := c.cached.ChannelsOnMask
	if err := c.writeReg8(BankStatus, mask); err != nil {
		return err
	}
	c.cached.ChannelsOnMask = mask
	c.noteMaskChange(old, mask)
	return nil
}

func (c *Controller) noteMaskChange(old, cur uint8) {
	diff := old ^ cur
	if diff == 0 {
		return
	}
	for ch := uint8(0); ch < NumChannels; ch++ {
		if diff&(1<<ch) == 0 {
			continue
		}
		c.stats.StateChanges++
		from, to := ChannelOff, ChannelOn
		if cur&(1<<ch) == 0 {
			from, to = ChannelOn, ChannelOff
		}
		if c.onState != nil {
			c.onState(ch, from, to)
		}
	}
}

// ---- DEVICE CONTROL ----

// EnableDevice raises the enable line without the full Initialize sequence.
func (c *Controller) EnableDevice() error {
	return c.SetDeviceEnabled(true)
}

// DisableDevice drops the enable line; the device sleeps.
func (c *Controller) DisableDevice() error {
	return c.SetDeviceEnabled(false)
}

// SetDeviceEnabled drives the enable line directly.
func (c *Controller) SetDeviceEnabled(on bool) error {
	if err := c.tr.SetPin(PinEnable, on); err != nil {
		return fmt.Errorf("%w: enable pin: %v", ErrCommunication, err)
	}
	return nil
}

// FaultPinActive samples the device's fault output. True means a fault is
// signaled.
func (c *Controller) FaultPinActive() (bool, error) {
	active, err := c.tr.ReadPin(PinFault)
	if err != nil {
		return false, fmt.Errorf("%w: fault pin: %v", ErrCommunication, err)
	}
	return active, nil
}

// ---- RAW REGISTER ACCESS ----

// ReadRegister32 reads a full register by bank address.
func (c *Controller) ReadRegister32(bank uint8) (uint32, error) {
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	if err := requireBank(bank); err != nil {
		return 0, err
	}
	return c.readReg32(bank)
}

// WriteRegister32 writes a full register by bank address.
func (c *Controller) WriteRegister32(bank uint8, value uint32) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := requireBank(bank); err != nil {
		return err
	}
	return c.writeReg32(bank, value)
}

// ReadRegister8 reads a register's most-significant byte in fast mode.
func (c *Controller) ReadRegister8(bank uint8) (uint8, error) {
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	if err := requireBank(bank); err != nil {
		return 0, err
	}
	return c.readReg8(bank)
}

// WriteRegister8 writes a register's most-significant byte in fast mode.
func (c *Controller) WriteRegister8(bank uint8, value uint8) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := requireBank(bank); err != nil {
		return err
	}
	return c.writeReg8(bank, value)
}

// ---- STATISTICS ----

// Statistics returns a snapshot of the driver counters.
func (c *Controller) Statistics() Statistics {
	s := c.stats
	if c.state == StateReady {
		s.Uptime = time.Since(c.startedAt)
	}
	return s
}

// ResetStatistics zeroes all counters.
func (c *Controller) ResetStatistics() {
	c.stats = Statistics{}
	if c.state == StateReady {
		c.startedAt = time.Now()
	}
}
