// types.go
package max22200

import (
	"math"
	"time"
)

// ---- ENUMERATIONS ----

// DriveMode selects how a channel regulates its output.
type DriveMode uint8

const (
	// DriveCurrent regulates output current via integrated sensing
	// (low-side only). Setpoints are in milliamps.
	DriveCurrent DriveMode = 0

	// DriveVoltage outputs a fixed-duty PWM voltage. Setpoints are in
	// percent duty cycle.
	DriveVoltage DriveMode = 1
)

// SideMode selects whether the channel switches the low or the high side of
// the load. High-side only supports voltage regulation.
type SideMode uint8

const (
	SideLow  SideMode = 0
	SideHigh SideMode = 1
)

// ChannelMode configures a pair of adjacent channels (0-1, 2-3, 4-5, 6-7).
// Pair-mode bits may only be changed while both channels of the pair are
// off; the codec does not check this.
type ChannelMode uint8

const (
	PairIndependent ChannelMode = 0
	PairParallel    ChannelMode = 1
	PairHBridge     ChannelMode = 2
)

// ChopFreq selects the chopping-frequency divider of the internal clock.
// The resulting frequency also depends on the device-wide clock base
// (StatusConfig.Clock80KHz); see ChopFreqKHz.
type ChopFreq uint8

const (
	ChopDiv4 ChopFreq = 0 // 25 kHz (100 kHz base) / 20 kHz (80 kHz base)
	ChopDiv3 ChopFreq = 1 // 33 kHz / 26 kHz
	ChopDiv2 ChopFreq = 2 // 50 kHz / 40 kHz
	ChopMain ChopFreq = 3 // 100 kHz / 80 kHz
)

// FullBridgeState is the drive state of a channel pair configured as an
// H-bridge. Forward drives from the odd channel's configuration, Reverse
// from the even channel's.
type FullBridgeState uint8

const (
	BridgeHiZ     FullBridgeState = 0 // both channels off
	BridgeForward FullBridgeState = 1 // even channel on, odd off
	BridgeReverse FullBridgeState = 2 // even off, odd on
	BridgeBrake   FullBridgeState = 3 // both on
)

// FaultType identifies a fault condition reported by the device.
type FaultType uint8

const (
	FaultOvercurrent     FaultType = 0 // OCP
	FaultHitNotReached   FaultType = 1 // HHF
	FaultOpenLoad        FaultType = 2 // OLF
	FaultPlungerMovement FaultType = 3 // DPM
	FaultOvertemperature FaultType = 4 // OVT (device-wide, STATUS)
	FaultUndervoltage    FaultType = 5 // UVM (device-wide, STATUS)
	FaultCommunication   FaultType = 6 // COMER (device-wide, STATUS)
)

func (f FaultType) String() string {
	switch f {
	case FaultOvercurrent:
		return "overcurrent"
	case FaultHitNotReached:
		return "hit not reached"
	case FaultOpenLoad:
		return "open load"
	case FaultPlungerMovement:
		return "plunger movement"
	case FaultOvertemperature:
		return "overtemperature"
	case FaultUndervoltage:
		return "undervoltage"
	case FaultCommunication:
		return "communication error"
	default:
		return "unknown fault"
	}
}

// ChannelState is the observable on/off state of a channel, reported to
// state-change callbacks.
type ChannelState uint8

const (
	ChannelOff ChannelState = 0
	ChannelOn  ChannelState = 1
)

// ---- CODEC ----
//
// Pure conversions between engineering units and packed register fields.
// No IO. No side effects. These functions are total: they clamp rather
// than error.

// ChopFreqKHz returns the chopping frequency in kHz for a clock base and
// divider. clock80kHz selects the 80 kHz internal clock base instead of the
// default 100 kHz one.
func ChopFreqKHz(clock80kHz bool, cf ChopFreq) uint32 {
	switch cf {
	case ChopDiv4:
		if clock80kHz {
			return 20
		}
		return 25
	case ChopDiv3:
		if clock80kHz {
			return 26
		}
		return 33
	case ChopDiv2:
		if clock80kHz {
			return 40
		}
		return 50
	case ChopMain:
		if clock80kHz {
			return 80
		}
		return 100
	default:
		return 25
	}
}

// CurrentToRaw converts a current setpoint in mA to the 7-bit register
// value. ifsMA is the board's full-scale current; 0 is an invalid scale and
// yields 0 (callers validate the scale before hitting the bus).
func CurrentToRaw(ifsMA uint32, ma float64) uint8 {
	if ifsMA == 0 || ma <= 0 {
		return 0
	}
	if ma >= float64(ifsMA) {
		return rawFieldMax
	}
	raw := math.Round(ma / float64(ifsMA) * rawFieldMax)
	if raw > rawFieldMax {
		return rawFieldMax
	}
	return uint8(raw)
}

// CurrentFromRaw converts a 7-bit register value back to mA. A zero scale
// decodes to 0.
func CurrentFromRaw(ifsMA uint32, raw uint8) float64 {
	if ifsMA == 0 {
		return 0
	}
	return float64(raw&rawFieldMax) / rawFieldMax * float64(ifsMA)
}

// DutyToRaw converts a duty cycle in percent to the 7-bit register value.
func DutyToRaw(percent float64) uint8 {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return rawFieldMax
	}
	raw := math.Round(percent / 100 * rawFieldMax)
	if raw > rawFieldMax {
		return rawFieldMax
	}
	return uint8(raw)
}

// DutyFromRaw converts a 7-bit register value back to percent duty.
func DutyFromRaw(raw uint8) float64 {
	return float64(raw&rawFieldMax) / rawFieldMax * 100
}

// ContinuousHitTime is the sentinel returned by HitTimeFromRaw for a
// continuous HIT phase. Any negative duration (or one at or beyond
// 1,000,000 ms) encodes as continuous.
const ContinuousHitTime = -1.0

// HitTimeToRaw converts a HIT duration in ms to the 8-bit HIT_T value.
// 0 means no HIT phase; negative or >= 1,000,000 ms means continuous.
// A nonzero finite duration never rounds to 0 or 255: the result is clamped
// to [1, 254].
func HitTimeToRaw(ms float64, clock80kHz bool, cf ChopFreq) uint8 {
	if ms < 0 || ms >= 1_000_000 {
		return hitTimeContinuous
	}
	if ms == 0 {
		return 0
	}
	fchopHz := float64(ChopFreqKHz(clock80kHz, cf)) * 1000
	raw := math.Round(ms / 1000 * fchopHz / 40)
	if raw < 1 {
		return 1
	}
	if raw > 254 {
		return 254
	}
	return uint8(raw)
}

// HitTimeFromRaw converts an 8-bit HIT_T value back to ms. 255 decodes to
// ContinuousHitTime.
func HitTimeFromRaw(raw uint8, clock80kHz bool, cf ChopFreq) float64 {
	if raw == 0 {
		return 0
	}
	if raw == hitTimeContinuous {
		return ContinuousHitTime
	}
	fchopHz := float64(ChopFreqKHz(clock80kHz, cf)) * 1000
	return float64(raw) * 40 / fchopHz * 1000
}

// MaxHitTimeMS returns the longest finite HIT duration representable at the
// given chopping configuration (HIT_T = 254).
func MaxHitTimeMS(clock80kHz bool, cf ChopFreq) float64 {
	return HitTimeFromRaw(254, clock80kHz, cf)
}

// ---- CHANNEL CONFIGURATION ----

// ChannelConfig holds one channel's configuration in engineering units.
// Hit and Hold are milliamps in current mode and percent duty in voltage
// mode. The zero value is a safe default (current mode, low side, slowest
// chopping, everything off).
type ChannelConfig struct {
	Hit       float64 // HIT setpoint: mA (current mode) or % duty (voltage mode)
	Hold      float64 // HOLD setpoint, same unit as Hit
	HitTimeMS float64 // 0 = no HIT phase; < 0 or >= 1,000,000 = continuous

	HalfFullScale  bool // halve the full-scale current (low side only)
	TriggerFromPin bool // channel follows the TRIG pin instead of the on-mask
	DriveMode      DriveMode
	SideMode       SideMode
	ChopFreq       ChopFreq

	SlewRateControl          bool // only valid below 50 kHz chopping
	OpenLoadDetection        bool
	PlungerMovementDetection bool
	HitCurrentCheck          bool
}

// Encode packs the configuration into the 32-bit CFG_CHx layout. ifsMA and
// clock80kHz are the device-wide context required to scale the setpoints.
func (c ChannelConfig) Encode(ifsMA uint32, clock80kHz bool) uint32 {
	var hitRaw, holdRaw uint8
	if c.DriveMode == DriveCurrent {
		hitRaw = CurrentToRaw(ifsMA, c.Hit)
		holdRaw = CurrentToRaw(ifsMA, c.Hold)
	} else {
		hitRaw = DutyToRaw(c.Hit)
		holdRaw = DutyToRaw(c.Hold)
	}
	hitTimeRaw := HitTimeToRaw(c.HitTimeMS, clock80kHz, c.ChopFreq)

	var val uint32
	if c.HalfFullScale {
		val |= cfgHFSBit
	}
	val |= uint32(holdRaw&rawFieldMax) << cfgHoldShift
	if c.TriggerFromPin {
		val |= cfgTrigBit
	}
	val |= uint32(hitRaw&rawFieldMax) << cfgHitShift
	val |= uint32(hitTimeRaw) << cfgHitTShift
	if c.DriveMode == DriveVoltage {
		val |= cfgVDRBit
	}
	if c.SideMode == SideHigh {
		val |= cfgHSBit
	}
	val |= uint32(c.ChopFreq&0x03) << cfgFreqShift
	if c.SlewRateControl {
		val |= cfgSRCBit
	}
	if c.OpenLoadDetection {
		val |= cfgOLBit
	}
	if c.PlungerMovementDetection {
		val |= cfgDPMBit
	}
	if c.HitCurrentCheck {
		val |= cfgHHFBit
	}
	return val
}

// DecodeChannelConfig unpacks a CFG_CHx register value into engineering
// units using the supplied device-wide context.
func DecodeChannelConfig(val uint32, ifsMA uint32, clock80kHz bool) ChannelConfig {
	c := ChannelConfig{
		HalfFullScale:            val&cfgHFSBit != 0,
		TriggerFromPin:           val&cfgTrigBit != 0,
		SideMode:                 SideLow,
		DriveMode:                DriveCurrent,
		ChopFreq:                 ChopFreq((val >> cfgFreqShift) & 0x03),
		SlewRateControl:          val&cfgSRCBit != 0,
		OpenLoadDetection:        val&cfgOLBit != 0,
		PlungerMovementDetection: val&cfgDPMBit != 0,
		HitCurrentCheck:          val&cfgHHFBit != 0,
	}
	if val&cfgVDRBit != 0 {
		c.DriveMode = DriveVoltage
	}
	if val&cfgHSBit != 0 {
		c.SideMode = SideHigh
	}

	hitRaw := uint8((val >> cfgHitShift) & rawFieldMax)
	holdRaw := uint8((val >> cfgHoldShift) & rawFieldMax)
	if c.DriveMode == DriveCurrent {
		c.Hit = CurrentFromRaw(ifsMA, hitRaw)
		c.Hold = CurrentFromRaw(ifsMA, holdRaw)
	} else {
		c.Hit = DutyFromRaw(hitRaw)
		c.Hold = DutyFromRaw(holdRaw)
	}
	c.HitTimeMS = HitTimeFromRaw(uint8((val>>cfgHitTShift)&0xFF), clock80kHz, c.ChopFreq)
	return c
}

// ContinuousHit reports whether the configuration requests a continuous
// HIT phase.
func (c ChannelConfig) ContinuousHit() bool {
	return c.HitTimeMS < 0 || c.HitTimeMS >= 1_000_000
}

// ---- STATUS ----

// StatusConfig mirrors the device-wide STATUS register. The fault-flag
// fields are read-only on the device and only meaningful after a decode.
type StatusConfig struct {
	ChannelsOnMask uint8 // bit N = channel N on

	// Fault masks: a set mask suppresses the FAULT pin for that condition.
	OvertemperatureMasked    bool
	OvercurrentMasked        bool
	OpenLoadMasked           bool
	HitNotReachedMasked      bool
	PlungerMovementMasked    bool
	CommunicationErrorMasked bool // device default is masked
	UndervoltageMasked       bool

	Clock80KHz bool // internal clock base: false=100 kHz, true=80 kHz

	// Channel-pair modes. Change only while both channels of the pair
	// are off.
	PairMode76 ChannelMode
	PairMode54 ChannelMode
	PairMode32 ChannelMode
	PairMode10 ChannelMode

	Active bool // global enable; 0 = low-power, outputs three-stated

	// Fault flags, read-only. UVM is set at power-up and cleared by
	// reading STATUS.
	Overtemperature    bool
	Overcurrent        bool
	OpenLoad           bool
	HitNotReached      bool
	PlungerMovement    bool
	CommunicationError bool
	Undervoltage       bool
}

// Encode packs the writable fields into the 32-bit STATUS layout. Fault
// flags are not encoded; the device ignores writes to them.
func (s StatusConfig) Encode() uint32 {
	val := uint32(s.ChannelsOnMask) << statusOnchShift
	if s.OvertemperatureMasked {
		val |= statusMaskOVT
	}
	if s.OvercurrentMasked {
		val |= statusMaskOCP
	}
	if s.OpenLoadMasked {
		val |= statusMaskOLF
	}
	if s.HitNotReachedMasked {
		val |= statusMaskHHF
	}
	if s.PlungerMovementMasked {
		val |= statusMaskDPM
	}
	if s.CommunicationErrorMasked {
		val |= statusMaskCOMF
	}
	if s.UndervoltageMasked {
		val |= statusMaskUVM
	}
	if s.Clock80KHz {
		val |= statusClock80
	}
	val |= uint32(s.PairMode76&0x03) << statusCM76Shift
	val |= uint32(s.PairMode54&0x03) << statusCM54Shift
	val |= uint32(s.PairMode32&0x03) << statusCM32Shift
	val |= uint32(s.PairMode10&0x03) << statusCM10Shift
	if s.Active {
		val |= statusActiveBit
	}
	return val
}

// DecodeStatus unpacks a STATUS register value.
func DecodeStatus(val uint32) StatusConfig {
	return StatusConfig{
		ChannelsOnMask:           uint8(val >> statusOnchShift),
		OvertemperatureMasked:    val&statusMaskOVT != 0,
		OvercurrentMasked:        val&statusMaskOCP != 0,
		OpenLoadMasked:           val&statusMaskOLF != 0,
		HitNotReachedMasked:      val&statusMaskHHF != 0,
		PlungerMovementMasked:    val&statusMaskDPM != 0,
		CommunicationErrorMasked: val&statusMaskCOMF != 0,
		UndervoltageMasked:       val&statusMaskUVM != 0,
		Clock80KHz:               val&statusClock80 != 0,
		PairMode76:               ChannelMode((val >> statusCM76Shift) & 0x03),
		PairMode54:               ChannelMode((val >> statusCM54Shift) & 0x03),
		PairMode32:               ChannelMode((val >> statusCM32Shift) & 0x03),
		PairMode10:               ChannelMode((val >> statusCM10Shift) & 0x03),
		Active:                   val&statusActiveBit != 0,
		Overtemperature:          val&statusFlagOVT != 0,
		Overcurrent:              val&statusFlagOCP != 0,
		OpenLoad:                 val&statusFlagOLF != 0,
		HitNotReached:            val&statusFlagHHF != 0,
		PlungerMovement:          val&statusFlagDPM != 0,
		CommunicationError:       val&statusFlagCOMER != 0,
		Undervoltage:             val&statusFlagUVM != 0,
	}
}

// HasFault reports whether any device-wide fault flag is set.
func (s StatusConfig) HasFault() bool {
	return s.Overtemperature || s.Overcurrent || s.OpenLoad ||
		s.HitNotReached || s.PlungerMovement || s.CommunicationError ||
		s.Undervoltage
}

// ChannelOn reports whether channel ch is on in the mask.
func (s StatusConfig) ChannelOn(ch uint8) bool {
	return ch < NumChannels && s.ChannelsOnMask&(1<<ch) != 0
}

// ---- FAULTS ----

// FaultStatus holds the four per-channel fault masks from the FAULT
// register. In each mask, bit N corresponds to channel N.
type FaultStatus struct {
	Overcurrent     uint8 // OCP
	HitNotReached   uint8 // HHF
	OpenLoad        uint8 // OLF
	PlungerMovement uint8 // DPM
}

// DecodeFaults unpacks a FAULT register value.
func DecodeFaults(val uint32) FaultStatus {
	return FaultStatus{
		Overcurrent:     uint8(val >> faultOCPShift),
		HitNotReached:   uint8(val >> faultHHFShift),
		OpenLoad:        uint8(val >> faultOLFShift),
		PlungerMovement: uint8(val >> faultDPMShift),
	}
}

// HasFault reports whether any per-channel fault bit is set.
func (f FaultStatus) HasFault() bool {
	return f.Overcurrent|f.HitNotReached|f.OpenLoad|f.PlungerMovement != 0
}

// ChannelMask returns the union of all fault types: bit N set means
// channel N has at least one fault.
func (f FaultStatus) ChannelMask() uint8 {
	return f.Overcurrent | f.HitNotReached | f.OpenLoad | f.PlungerMovement
}

// Count returns the total number of set fault bits across all four types.
func (f FaultStatus) Count() int {
	n := 0
	for _, mask := range [4]uint8{f.Overcurrent, f.HitNotReached, f.OpenLoad, f.PlungerMovement} {
		for i := 0; i < NumChannels; i++ {
			if mask&(1<<i) != 0 {
				n++
			}
		}
	}
	return n
}

// ---- DPM ----

// DPMConfig holds the global plunger-movement detection parameters
// (CFG_DPM register). StartCurrent is in IFS/127 steps (0-127); Debounce is
// in chopping periods (0-15); DipThreshold is in IFS/127 steps (0-15).
type DPMConfig struct {
	StartCurrent uint8
	Debounce     uint8
	DipThreshold uint8
}

// Encode packs the configuration into the CFG_DPM layout.
func (d DPMConfig) Encode() uint32 {
	return (uint32(d.StartCurrent)&dpmStartMask)<<dpmStartShift |
		(uint32(d.Debounce)&dpmDebMask)<<dpmDebShift |
		(uint32(d.DipThreshold)&dpmThreshMask)<<dpmThreshShift
}

// DecodeDPMConfig unpacks a CFG_DPM register value.
func DecodeDPMConfig(val uint32) DPMConfig {
	return DPMConfig{
		StartCurrent: uint8((val >> dpmStartShift) & dpmStartMask),
		Debounce:     uint8((val >> dpmDebShift) & dpmDebMask),
		DipThreshold: uint8((val >> dpmThreshShift) & dpmThreshMask),
	}
}

// ---- BOARD ----

// BoardConfig carries the board-level scaling and optional safety clamps.
// FullScaleCurrentMA is required for current-regulation channels; the
// clamps are disabled at 0.
type BoardConfig struct {
	FullScaleCurrentMA uint32 // IFS, from the external reference resistor
	MaxCurrentMA       uint32 // setpoint clamp, 0 = disabled
	MaxDutyPercent     uint8  // duty clamp, 0 = disabled
}

// BoardConfigFromRREF derives the full-scale current from the reference
// resistor on the IREF pin: IFS = KFS x 1000 / RREF, with KFS = 15 kOhm at
// full scale and 7.5 kOhm at half scale.
func BoardConfigFromRREF(rrefKOhm float64, halfScale bool) BoardConfig {
	if rrefKOhm <= 0 {
		return BoardConfig{}
	}
	kfs := 15.0
	if halfScale {
		kfs = 7.5
	}
	return BoardConfig{
		FullScaleCurrentMA: uint32(math.Round(kfs * 1000 / rrefKOhm)),
	}
}

// ---- DUTY LIMITS ----

// DutyLimits is the usable duty-cycle window for a chopping configuration.
type DutyLimits struct {
	MinPercent uint8
	MaxPercent uint8
}

// DutyLimitsFor returns the duty window for a clock base, divider, and
// slew-rate setting.
func DutyLimitsFor(clock80kHz bool, cf ChopFreq, slewRateControl bool) DutyLimits {
	if slewRateControl {
		return DutyLimits{MinPercent: 7, MaxPercent: 93}
	}
	if cf == ChopMain {
		return DutyLimits{MinPercent: 8, MaxPercent: 92}
	}
	_ = clock80kHz
	return DutyLimits{MinPercent: 4, MaxPercent: 96}
}

// Clamp limits percent to the window.
func (d DutyLimits) Clamp(percent float64) float64 {
	if percent < float64(d.MinPercent) {
		return float64(d.MinPercent)
	}
	if percent > float64(d.MaxPercent) {
		return float64(d.MaxPercent)
	}
	return percent
}

// ---- STATISTICS & CALLBACKS ----

// Statistics are monotonic driver counters. Uptime is measured from the
// last successful Initialize.
type Statistics struct {
	TotalTransfers  uint32
	FailedTransfers uint32
	FaultEvents     uint32
	StateChanges    uint32
	Uptime          time.Duration
}

// SuccessRate is the percentage of transfers that succeeded; 100 when no
// transfer happened yet.
func (s Statistics) SuccessRate() float64 {
	if s.TotalTransfers == 0 {
		return 100
	}
	return float64(s.TotalTransfers-s.FailedTransfers) / float64(s.TotalTransfers) * 100
}

// FaultCallback observes decoded per-channel faults. It runs synchronously
// on the goroutine that performed the read.
type FaultCallback func(channel uint8, fault FaultType)

// StateChangeCallback observes channel on/off transitions. It runs
// synchronously on the goroutine that toggled the channel.
type StateChangeCallback func(channel uint8, oldState, newState ChannelState)
