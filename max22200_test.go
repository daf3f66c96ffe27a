// max22200_test.go
package max22200

import (
	"errors"
	"testing"
	"time"
)

func TestInitialize_Sequence(t *testing.T) {
	tr := newFakeTransport()
	c := New(tr)

	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() err=%v", err)
	}

	if !c.Initialized() {
		t.Fatal("controller not ready after Initialize")
	}
	if tr.confSpeed != MaxSPIFreqStandalone || tr.confMode != 0 || !tr.confMSB {
		t.Errorf("bus configured as speed=%d mode=%d msb=%v",
			tr.confSpeed, tr.confMode, tr.confMSB)
	}
	if !tr.pins[PinEnable] {
		t.Error("enable line not raised")
	}
	if len(tr.delays) == 0 || tr.delays[0] < 500*time.Microsecond {
		t.Errorf("power-up delay missing or too short: %v", tr.delays)
	}

	st := DecodeStatus(tr.regs[BankStatus])
	if !st.Active {
		t.Error("ACTIVE not set in written status")
	}
	if !st.CommunicationErrorMasked {
		t.Error("communication-error fault not masked in written status")
	}
	if st.ChannelsOnMask != 0 {
		t.Errorf("channels on after init: mask=0x%02X", st.ChannelsOnMask)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	tr := newFakeTransport()
	c := New(tr)
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() err=%v", err)
	}
	n := len(tr.transfers)
	if err := c.Initialize(); err != nil {
		t.Fatalf("second Initialize() err=%v", err)
	}
	if len(tr.transfers) != n {
		t.Error("second Initialize touched the bus")
	}
}

func TestInitialize_ComerRetryThenRecover(t *testing.T) {
	tr := newFakeTransport()
	tr.faultBytes = []uint8{FaultByteCOMER} // first attempt's read misfires
	c := New(tr)

	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize() err=%v", err)
	}
	if !c.Initialized() {
		t.Fatal("controller not ready after recovered init")
	}
}

func TestInitialize_ComerExhaustion(t *testing.T) {
	tr := newFakeTransport()
	tr.faultBytes = []uint8{FaultByteCOMER, FaultByteCOMER, FaultByteCOMER}
	c := New(tr)

	err := c.Initialize()
	if !errors.Is(err, ErrCommunication) {
		t.Fatalf("err=%v, want ErrCommunication", err)
	}
	if c.Initialized() {
		t.Error("controller ready despite exhausted retries")
	}
	if tr.pins[PinEnable] {
		t.Error("enable line left high after failed init")
	}
}

func TestInitialize_TransferFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.transferErr = errBus
	c := New(tr)

	err := c.Initialize()
	if !errors.Is(err, ErrCommunication) {
		t.Fatalf("err=%v, want ErrCommunication", err)
	}
	if tr.pins[PinEnable] {
		t.Error("enable line left high after failed init")
	}
}

func TestDeinitialize(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})
	if err := c.EnableChannel(2); err != nil {
		t.Fatalf("EnableChannel err=%v", err)
	}

	if err := c.Deinitialize(); err != nil {
		t.Fatalf("Deinitialize() err=%v", err)
	}

	st := DecodeStatus(tr.regs[BankStatus])
	if st.Active {
		t.Error("ACTIVE still set after Deinitialize")
	}
	if st.ChannelsOnMask != 0 {
		t.Errorf("channels still on: mask=0x%02X", st.ChannelsOnMask)
	}
	if tr.pins[PinEnable] {
		t.Error("enable line left high")
	}

	// Second call is a no-op.
	n := len(tr.transfers)
	if err := c.Deinitialize(); err != nil {
		t.Fatalf("second Deinitialize() err=%v", err)
	}
	if len(tr.transfers) != n {
		t.Error("second Deinitialize touched the bus")
	}
}

func TestOperationsRejectedBeforeInitialize(t *testing.T) {
	c := New(newFakeTransport())

	if err := c.EnableChannel(0); !errors.Is(err, ErrInitialization) {
		t.Errorf("EnableChannel err=%v, want ErrInitialization", err)
	}
	if err := c.ConfigureChannel(0, ChannelConfig{}); !errors.Is(err, ErrInitialization) {
		t.Errorf("ConfigureChannel err=%v, want ErrInitialization", err)
	}
	if _, err := c.ReadFaults(); !errors.Is(err, ErrInitialization) {
		t.Errorf("ReadFaults err=%v, want ErrInitialization", err)
	}
}

func TestEnableChannel_SingleFastTransaction(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	if err := c.EnableChannel(3); err != nil {
		t.Fatalf("EnableChannel err=%v", err)
	}

	// One command phase plus one single-byte data phase, nothing else.
	if len(tr.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(tr.transfers))
	}
	if got := tr.transfers[0].tx[0]; got != 0x81 {
		t.Errorf("command byte=0x%02X, want 0x81", got)
	}
	if got := tr.transfers[1].tx[0]; got != 0x08 {
		t.Errorf("mask byte=0x%02X, want 0x08", got)
	}
	if !c.CachedStatus().ChannelOn(3) {
		t.Error("cache not updated")
	}
}

func TestSetChannelEnabled_PreservesOtherChannels(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	if err := c.SetChannelMask(0xF0); err != nil {
		t.Fatalf("SetChannelMask err=%v", err)
	}
	if err := c.SetChannelEnabled(0, true); err != nil {
		t.Fatalf("SetChannelEnabled err=%v", err)
	}
	if err := c.SetChannelEnabled(7, false); err != nil {
		t.Fatalf("SetChannelEnabled err=%v", err)
	}

	if got := uint8(tr.regs[BankStatus] >> statusOnchShift); got != 0x71 {
		t.Errorf("device mask=0x%02X, want 0x71", got)
	}
}

func TestChannelToggle_Callbacks(t *testing.T) {
	c, _ := readyController(t, BoardConfig{})

	type change struct {
		ch       uint8
		from, to ChannelState
	}
	var changes []change
	c.SetStateChangeCallback(func(ch uint8, from, to ChannelState) {
		changes = append(changes, change{ch, from, to})
	})

	if err := c.SetChannelMask(0x05); err != nil {
		t.Fatalf("SetChannelMask err=%v", err)
	}
	if err := c.DisableChannel(0); err != nil {
		t.Fatalf("DisableChannel err=%v", err)
	}

	want := []change{
		{0, ChannelOff, ChannelOn},
		{2, ChannelOff, ChannelOn},
		{0, ChannelOn, ChannelOff},
	}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("change %d=%+v, want %+v", i, changes[i], w)
		}
	}
	if got := c.Statistics().StateChanges; got != 3 {
		t.Errorf("StateChanges=%d, want 3", got)
	}
}

func TestSetFullBridgeState(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	// Unrelated channels stay as they are.
	if err := c.SetChannelMask(0xC0); err != nil {
		t.Fatalf("SetChannelMask err=%v", err)
	}

	cases := []struct {
		state FullBridgeState
		want  uint8
	}{
		{BridgeForward, 0xC0 | 0x04},
		{BridgeReverse, 0xC0 | 0x08},
		{BridgeBrake, 0xC0 | 0x0C},
		{BridgeHiZ, 0xC0},
	}
	for _, tc := range cases {
		if err := c.SetFullBridgeState(1, tc.state); err != nil {
			t.Fatalf("SetFullBridgeState(%d) err=%v", tc.state, err)
		}
		if got := uint8(tr.regs[BankStatus] >> statusOnchShift); got != tc.want {
			t.Errorf("state %d: mask=0x%02X, want 0x%02X", tc.state, got, tc.want)
		}
	}

	if err := c.SetFullBridgeState(4, BridgeForward); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("pair 4 err=%v, want ErrInvalidParameter", err)
	}
}

func TestConfigureChannel_WritesEncodedRegister(t *testing.T) {
	c, tr := readyController(t, BoardConfig{FullScaleCurrentMA: 1000})

	cfg := ChannelConfig{
		Hit:       500,
		Hold:      250,
		HitTimeMS: 100,
		DriveMode: DriveCurrent,
		ChopFreq:  ChopDiv4,
	}
	if err := c.ConfigureChannel(2, cfg); err != nil {
		t.Fatalf("ConfigureChannel err=%v", err)
	}

	val := tr.regs[ChannelBank(2)]
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != 64 {
		t.Errorf("hit raw=%d, want 64", got)
	}
	if got := uint8(val >> cfgHoldShift & rawFieldMax); got != 32 {
		t.Errorf("hold raw=%d, want 32", got)
	}
	if got := uint8(val >> cfgHitTShift); got != 63 {
		t.Errorf("hit time raw=%d, want 63", got)
	}
}

func TestConfigureChannel_Validation(t *testing.T) {
	c, tr := readyController(t, BoardConfig{}) // no current scale

	cases := []struct {
		name string
		ch   uint8
		cfg  ChannelConfig
	}{
		{"channel out of range", 8, ChannelConfig{DriveMode: DriveVoltage}},
		{"current mode without scale", 0, ChannelConfig{DriveMode: DriveCurrent}},
		{"current mode on high side", 0, ChannelConfig{DriveMode: DriveCurrent, SideMode: SideHigh}},
		{"slew rate at 50 kHz", 0, ChannelConfig{DriveMode: DriveVoltage, ChopFreq: ChopDiv2, SlewRateControl: true}},
		{"slew rate at 100 kHz", 0, ChannelConfig{DriveMode: DriveVoltage, ChopFreq: ChopMain, SlewRateControl: true}},
		{"nan hit time", 0, ChannelConfig{DriveMode: DriveVoltage, HitTimeMS: nan()}},
		{"hit time beyond range", 0, ChannelConfig{DriveMode: DriveVoltage, ChopFreq: ChopMain, HitTimeMS: 500}},
	}
	for _, tc := range cases {
		err := c.ConfigureChannel(tc.ch, tc.cfg)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("%s: err=%v, want ErrInvalidParameter", tc.name, err)
		}
	}

	// Validation failures never touch the bus.
	if len(tr.transfers) != 0 {
		t.Errorf("rejected configs caused %d transfers", len(tr.transfers))
	}
}

func TestConfigureChannel_BoardClamps(t *testing.T) {
	c, tr := readyController(t, BoardConfig{FullScaleCurrentMA: 1000, MaxCurrentMA: 500})

	cfg := ChannelConfig{Hit: 900, Hold: 900, DriveMode: DriveCurrent}
	if err := c.ConfigureChannel(0, cfg); err != nil {
		t.Fatalf("ConfigureChannel err=%v", err)
	}

	val := tr.regs[ChannelBank(0)]
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != 64 {
		t.Errorf("clamped hit raw=%d, want 64", got)
	}
	if got := uint8(val >> cfgHoldShift & rawFieldMax); got != 64 {
		t.Errorf("clamped hold raw=%d, want 64", got)
	}
}

func TestReadStatus_RefreshesCache(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	st := StatusConfig{Active: true, ChannelsOnMask: 0x0F, Clock80KHz: true}
	tr.regs[BankStatus] = st.Encode()

	got, err := c.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus err=%v", err)
	}
	if got.ChannelsOnMask != 0x0F || !got.Clock80KHz {
		t.Errorf("decoded status=%+v", got)
	}
	if c.CachedStatus() != got {
		t.Error("cache not refreshed")
	}
}

func TestRawRegisterAccess_BankValidation(t *testing.T) {
	c, _ := readyController(t, BoardConfig{})

	if _, err := c.ReadRegister32(0x0B); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("read bank 0x0B err=%v, want ErrInvalidParameter", err)
	}
	if err := c.WriteRegister32(0x0B, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("write bank 0x0B err=%v, want ErrInvalidParameter", err)
	}
}

func TestStatistics_Counters(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	if err := c.EnableChannel(0); err != nil {
		t.Fatalf("EnableChannel err=%v", err)
	}
	tr.transferErr = errBus
	_, _ = c.ReadStatus()

	stats := c.Statistics()
	if stats.TotalTransfers != 3 {
		t.Errorf("TotalTransfers=%d, want 3", stats.TotalTransfers)
	}
	if stats.FailedTransfers != 1 {
		t.Errorf("FailedTransfers=%d, want 1", stats.FailedTransfers)
	}
	if stats.StateChanges != 1 {
		t.Errorf("StateChanges=%d, want 1", stats.StateChanges)
	}
	if stats.Uptime <= 0 {
		t.Error("Uptime not running while ready")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
