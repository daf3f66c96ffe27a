// internal/config/map.go
package config

import "github.com/tamzrod/max22200"

// Mapping from normalized configuration to driver types. Call only after
// Validate and Normalize.

// Driver converts the board section. An rref-based scale is derived here;
// an explicit full_scale_ma passes through.
func (b BoardConfig) Driver() max22200.BoardConfig {
	var out max22200.BoardConfig
	if b.RrefKOhm > 0 {
		out = max22200.BoardConfigFromRREF(b.RrefKOhm, b.HalfScale)
	} else {
		out.FullScaleCurrentMA = b.FullScaleMA
	}
	out.MaxCurrentMA = b.MaxCurrentMA
	out.MaxDutyPercent = b.MaxDutyPercent
	return out
}

// Driver converts one channel section.
func (c ChannelConfig) Driver() max22200.ChannelConfig {
	out := max22200.ChannelConfig{
		Hit:       c.Hit,
		Hold:      c.Hold,
		HitTimeMS: c.HitTimeMS,

		HalfFullScale:  c.HalfFullScale,
		TriggerFromPin: c.TriggerFromPin,

		SlewRateControl:          c.SlewRateControl,
		OpenLoadDetection:        c.OpenLoad,
		PlungerMovementDetection: c.PlungerDetect,
		HitCurrentCheck:          c.HitCheck,
	}
	if c.Mode == "voltage" {
		out.DriveMode = max22200.DriveVoltage
	}
	if c.Side == "high" {
		out.SideMode = max22200.SideHigh
	}
	switch c.Chop {
	case "div3":
		out.ChopFreq = max22200.ChopDiv3
	case "div2":
		out.ChopFreq = max22200.ChopDiv2
	case "main":
		out.ChopFreq = max22200.ChopMain
	default:
		out.ChopFreq = max22200.ChopDiv4
	}
	return out
}
