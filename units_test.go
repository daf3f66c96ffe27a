// units_test.go
package max22200

import (
	"errors"
	"testing"
)

func TestSetHoldCurrentMA_FastPath(t *testing.T) {
	c, tr := readyController(t, BoardConfig{FullScaleCurrentMA: 1000})
	tr.regs[ChannelBank(0)] = cfgHFSBit | 0x00123456

	if err := c.SetHoldCurrentMA(0, 500); err != nil {
		t.Fatalf("SetHoldCurrentMA err=%v", err)
	}

	// Read MSB, write MSB: four transfers, all fast mode.
	if len(tr.transfers) != 4 {
		t.Fatalf("expected 4 transfers, got %d", len(tr.transfers))
	}
	if got := tr.transfers[0].tx[0]; got != 0x03 {
		t.Errorf("read command byte=0x%02X, want 0x03", got)
	}
	if got := tr.transfers[2].tx[0]; got != 0x83 {
		t.Errorf("write command byte=0x%02X, want 0x83", got)
	}

	val := tr.regs[ChannelBank(0)]
	if val&cfgHFSBit == 0 {
		t.Error("half-full-scale bit lost")
	}
	if got := uint8(val >> cfgHoldShift & rawFieldMax); got != 64 {
		t.Errorf("hold raw=%d, want 64", got)
	}
	if val&0x00FFFFFF != 0x00123456 {
		t.Errorf("lower bytes disturbed: 0x%08X", val)
	}
}

func TestSetHitCurrentMA(t *testing.T) {
	c, tr := readyController(t, BoardConfig{FullScaleCurrentMA: 1000, MaxCurrentMA: 600})
	tr.regs[ChannelBank(1)] = uint32(99) << cfgHoldShift

	// 900 clamps to the board's 600 mA limit.
	if err := c.SetHitCurrentMA(1, 900); err != nil {
		t.Fatalf("SetHitCurrentMA err=%v", err)
	}

	val := tr.regs[ChannelBank(1)]
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != CurrentToRaw(1000, 600) {
		t.Errorf("hit raw=%d, want %d", got, CurrentToRaw(1000, 600))
	}
	if got := uint8(val >> cfgHoldShift & rawFieldMax); got != 99 {
		t.Errorf("hold raw disturbed: %d", got)
	}
}

func TestSetCurrent_RequiresScale(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	if err := c.SetHitCurrentMA(0, 100); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("err=%v, want ErrInvalidParameter", err)
	}
	if err := c.SetHoldCurrentPercent(0, 50); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("percent err=%v, want ErrInvalidParameter", err)
	}
	if len(tr.transfers) != 0 {
		t.Errorf("rejected updates caused %d transfers", len(tr.transfers))
	}
}

func TestCurrentGetters(t *testing.T) {
	c, tr := readyController(t, BoardConfig{FullScaleCurrentMA: 1000})
	tr.regs[ChannelBank(2)] = uint32(64)<<cfgHitShift | uint32(32)<<cfgHoldShift

	hit, err := c.HitCurrentMA(2)
	if err != nil {
		t.Fatalf("HitCurrentMA err=%v", err)
	}
	if hit != CurrentFromRaw(1000, 64) {
		t.Errorf("hit=%v mA", hit)
	}
	hold, err := c.HoldCurrentMA(2)
	if err != nil {
		t.Fatalf("HoldCurrentMA err=%v", err)
	}
	if hold != CurrentFromRaw(1000, 32) {
		t.Errorf("hold=%v mA", hold)
	}
}

func TestSetHitDutyPercent_ClampsToWindow(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})
	tr.regs[ChannelBank(0)] = cfgVDRBit | cfgSRCBit // slew rate: 7-93% window

	if err := c.SetHitDutyPercent(0, 99); err != nil {
		t.Fatalf("SetHitDutyPercent err=%v", err)
	}

	val := tr.regs[ChannelBank(0)]
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != DutyToRaw(93) {
		t.Errorf("hit raw=%d, want %d (clamped to 93%%)", got, DutyToRaw(93))
	}
}

func TestSetHoldDutyPercent_WritesMSBOnly(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})
	tr.regs[ChannelBank(0)] = cfgVDRBit | uint32(55)<<cfgHitShift

	if err := c.SetHoldDutyPercent(0, 50); err != nil {
		t.Fatalf("SetHoldDutyPercent err=%v", err)
	}

	// Full read, then a single-byte write.
	last := tr.transfers[len(tr.transfers)-1]
	if len(last.tx) != 1 {
		t.Fatalf("final data phase moved %d bytes, want 1", len(last.tx))
	}

	val := tr.regs[ChannelBank(0)]
	if got := uint8(val >> cfgHoldShift & rawFieldMax); got != DutyToRaw(50) {
		t.Errorf("hold raw=%d, want %d", got, DutyToRaw(50))
	}
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != 55 {
		t.Errorf("hit raw disturbed: %d", got)
	}
}

func TestSetHitTimeMS(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})
	tr.regs[ChannelBank(3)] = cfgVDRBit // div4 chopping

	if err := c.SetHitTimeMS(3, 100); err != nil {
		t.Fatalf("SetHitTimeMS err=%v", err)
	}
	if got := uint8(tr.regs[ChannelBank(3)] >> cfgHitTShift); got != 63 {
		t.Errorf("hit time raw=%d, want 63", got)
	}

	// The longest finite time at 25 kHz is 406.4 ms.
	if err := c.SetHitTimeMS(3, 500); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("oversized hit time err=%v, want ErrInvalidParameter", err)
	}

	// Negative requests continuous drive.
	if err := c.SetHitTimeMS(3, -1); err != nil {
		t.Fatalf("continuous SetHitTimeMS err=%v", err)
	}
	if got := uint8(tr.regs[ChannelBank(3)] >> cfgHitTShift); got != 255 {
		t.Errorf("hit time raw=%d, want 255", got)
	}
}

func TestHitTimeMSGetter(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})
	tr.regs[ChannelBank(0)] = uint32(63) << cfgHitTShift

	ms, err := c.HitTimeMS(0)
	if err != nil {
		t.Fatalf("HitTimeMS err=%v", err)
	}
	if ms != HitTimeFromRaw(63, false, ChopDiv4) {
		t.Errorf("hit time=%v ms", ms)
	}
}

func TestConfigureChannelCDR(t *testing.T) {
	c, tr := readyController(t, BoardConfig{FullScaleCurrentMA: 1000})

	if err := c.ConfigureChannelCDR(0, 500, 250, 100); err != nil {
		t.Fatalf("ConfigureChannelCDR err=%v", err)
	}

	val := tr.regs[ChannelBank(0)]
	if val&cfgVDRBit != 0 {
		t.Error("VDR bit set for current regulation")
	}
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != 64 {
		t.Errorf("hit raw=%d, want 64", got)
	}
}

func TestConfigureChannelVDR(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})

	if err := c.ConfigureChannelVDR(0, 80, 40, 50); err != nil {
		t.Fatalf("ConfigureChannelVDR err=%v", err)
	}

	val := tr.regs[ChannelBank(0)]
	if val&cfgVDRBit == 0 {
		t.Error("VDR bit missing for voltage regulation")
	}
	if got := uint8(val >> cfgHitShift & rawFieldMax); got != DutyToRaw(80) {
		t.Errorf("hit raw=%d, want %d", got, DutyToRaw(80))
	}
}

func TestDutyLimitsGetter(t *testing.T) {
	c, tr := readyController(t, BoardConfig{})
	tr.regs[ChannelBank(5)] = uint32(ChopMain) << cfgFreqShift

	lim, err := c.DutyLimits(5)
	if err != nil {
		t.Fatalf("DutyLimits err=%v", err)
	}
	if lim != (DutyLimits{8, 92}) {
		t.Errorf("limits=%+v, want {8 92}", lim)
	}
}
