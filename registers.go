// registers.go
package max22200

// Register map and bit layout for the MAX22200 octal solenoid/motor driver.
// These values define the wire protocol and MUST NOT be configurable.
//
// The device has one 8-bit write-only Command Register plus eleven 32-bit
// data registers selected by a 4-bit bank address:
//
//	0x00       STATUS   channel on/off, HW config, fault masks, fault flags
//	0x01-0x08  CFG_CHx  per-channel configuration (channel N = 0x01+N)
//	0x09       FAULT    per-channel fault flags (read-only)
//	0x0A       CFG_DPM  plunger-movement detection, global
//
// Every access is two-phase: the command byte is shifted out first with the
// CMD line asserted (the device answers with its fault-flag byte), then the
// data payload moves with CMD deasserted.

// NumChannels is the number of output channels (the device is octal).
const NumChannels = 8

// SPI clock limits. Documented, not enforced: the Transport owner picks the
// actual clock.
const (
	// MaxSPIFreqStandalone is the maximum SPI clock with a single device
	// on the bus (Hz).
	MaxSPIFreqStandalone = 10_000_000

	// MaxSPIFreqDaisyChain is the maximum SPI clock when devices are
	// daisy-chained (Hz).
	MaxSPIFreqDaisyChain = 5_000_000
)

// ---- REGISTER BANKS ----

const (
	// BankStatus selects the device-wide STATUS register.
	BankStatus uint8 = 0x00

	// BankCfgCh0 selects channel 0's configuration register. Channel N
	// lives at BankCfgCh0+N; use ChannelBank.
	BankCfgCh0 uint8 = 0x01

	// BankFault selects the read-only per-channel FAULT register.
	BankFault uint8 = 0x09

	// BankCfgDPM selects the global plunger-movement configuration.
	BankCfgDPM uint8 = 0x0A
)

// ChannelBank returns the bank address of channel ch's configuration
// register. ch must be < NumChannels.
func ChannelBank(ch uint8) uint8 {
	return BankCfgCh0 + ch
}

// ---- COMMAND BYTE ----

// Command byte layout: RB/W (bit 7) | RFU (bits 6:5) | A_BNK (bits 4:1) |
// 8bit/n32bit (bit 0).
const (
	cmdWrite    uint8 = 0x80
	cmdMode8    uint8 = 0x01
	cmdBankPos        = 1
	cmdBankMask uint8 = 0x0F
)

// CommandByte builds the 8-bit command register value for a register access.
// write selects a write transaction; mode8 selects the fast 8-bit MSB-only
// data phase instead of the full 32-bit one.
func CommandByte(bank uint8, write, mode8 bool) uint8 {
	cmd := (bank & cmdBankMask) << cmdBankPos
	if write {
		cmd |= cmdWrite
	}
	if mode8 {
		cmd |= cmdMode8
	}
	return cmd
}

// FaultByteCOMER is the fault-flag byte value returned during the command
// phase when the device misread the previous transaction. It triggers retry
// logic during Initialize, never an immediate hard failure.
const FaultByteCOMER uint8 = 0x04

// ---- STATUS REGISTER (0x00) ----

const (
	statusOnchShift = 24 // ONCH[7:0], bits 31:24

	// Fault masks + clock base, bits 23:16. A set mask bit suppresses the
	// FAULT pin for that condition.
	statusMaskOVT  uint32 = 1 << 23
	statusMaskOCP  uint32 = 1 << 22
	statusMaskOLF  uint32 = 1 << 21
	statusMaskHHF  uint32 = 1 << 20
	statusMaskDPM  uint32 = 1 << 19
	statusMaskCOMF uint32 = 1 << 18
	statusMaskUVM  uint32 = 1 << 17
	statusClock80  uint32 = 1 << 16 // FREQM: 0=100kHz base, 1=80kHz base

	// Channel-pair modes, bits 15:8 (2 bits per pair).
	statusCM76Shift = 14
	statusCM54Shift = 12
	statusCM32Shift = 10
	statusCM10Shift = 8

	// Fault flags (read-only) + ACTIVE, bits 7:0.
	statusFlagOVT   uint32 = 1 << 7
	statusFlagOCP   uint32 = 1 << 6
	statusFlagOLF   uint32 = 1 << 5
	statusFlagHHF   uint32 = 1 << 4
	statusFlagDPM   uint32 = 1 << 3
	statusFlagCOMER uint32 = 1 << 2
	statusFlagUVM   uint32 = 1 << 1
	statusActiveBit uint32 = 1 << 0
)

// ---- CHANNEL CONFIGURATION REGISTER (0x01-0x08) ----

const (
	cfgHFSBit    uint32 = 1 << 31 // half full-scale
	cfgHoldShift        = 24      // HOLD[6:0], bits 30:24
	cfgTrigBit   uint32 = 1 << 23 // TRGnSPI: 1=TRIG pin, 0=SPI ONCH
	cfgHitShift         = 16      // HIT[6:0], bits 22:16
	cfgHitTShift        = 8       // HIT_T[7:0], bits 15:8
	cfgVDRBit    uint32 = 1 << 7  // 1=voltage regulation, 0=current
	cfgHSBit     uint32 = 1 << 6  // 1=high side, 0=low side
	cfgFreqShift        = 4       // FREQ_CFG[1:0], bits 5:4
	cfgSRCBit    uint32 = 1 << 3  // slew-rate control
	cfgOLBit     uint32 = 1 << 2  // open-load detection
	cfgDPMBit    uint32 = 1 << 1  // plunger-movement detection
	cfgHHFBit    uint32 = 1 << 0  // hit-current check
)

// rawFieldMax is the largest value of the 7-bit HIT/HOLD fields.
const rawFieldMax = 127

// hitTimeContinuous is the HIT_T byte requesting continuous HIT drive.
const hitTimeContinuous = 255

// ---- FAULT REGISTER (0x09) ----

// One byte per fault type, one bit per channel (bit N = channel N).
const (
	faultOCPShift = 24
	faultHHFShift = 16
	faultOLFShift = 8
	faultDPMShift = 0
)

// ---- CFG_DPM REGISTER (0x0A) ----

const (
	dpmStartShift         = 8 // DPM_ISTART[6:0], bits 14:8
	dpmStartMask   uint32 = 0x7F
	dpmDebShift           = 4 // DPM_TDEB[3:0], bits 7:4
	dpmDebMask     uint32 = 0x0F
	dpmThreshShift        = 0 // DPM_IPTH[3:0], bits 3:0
	dpmThreshMask  uint32 = 0x0F
)
