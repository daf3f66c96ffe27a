// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/max22200"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	s := cfg.Solenoid

	// ------------------------------------------------------------
	// TRANSPORT
	// ------------------------------------------------------------

	if s.Transport.CommandPin == "" {
		return fmt.Errorf("transport: command_pin is required")
	}
	if s.Transport.EnablePin == "" {
		return fmt.Errorf("transport: enable_pin is required")
	}
	if s.Transport.FaultActiveLow && s.Transport.FaultPin == "" {
		return fmt.Errorf("transport: fault_active_low is set but fault_pin is empty")
	}

	// ------------------------------------------------------------
	// BOARD SCALE
	// ------------------------------------------------------------

	if s.Board.RrefKOhm < 0 {
		return fmt.Errorf("board: rref_kohm must be >= 0")
	}
	if s.Board.RrefKOhm > 0 && s.Board.FullScaleMA > 0 {
		return fmt.Errorf("board: rref_kohm and full_scale_ma are mutually exclusive")
	}
	if s.Board.HalfScale && s.Board.RrefKOhm == 0 {
		return fmt.Errorf("board: half_scale requires rref_kohm")
	}
	if s.Board.MaxDutyPercent > 100 {
		return fmt.Errorf("board: max_duty_percent must be <= 100")
	}

	hasScale := s.Board.RrefKOhm > 0 || s.Board.FullScaleMA > 0

	// ------------------------------------------------------------
	// CHANNELS
	// ------------------------------------------------------------

	seen := make(map[uint8]bool)

	for _, ch := range s.Channels {
		if ch.Channel >= max22200.NumChannels {
			return fmt.Errorf("channel %d: out of range (0-%d)", ch.Channel, max22200.NumChannels-1)
		}
		if seen[ch.Channel] {
			return fmt.Errorf("channel %d: configured twice", ch.Channel)
		}
		seen[ch.Channel] = true

		switch ch.Mode {
		case "current", "voltage":
		default:
			return fmt.Errorf("channel %d: mode must be \"current\" or \"voltage\"", ch.Channel)
		}
		switch ch.Side {
		case "", "low", "high":
		default:
			return fmt.Errorf("channel %d: side must be \"low\" or \"high\"", ch.Channel)
		}
		switch ch.Chop {
		case "", "div4", "div3", "div2", "main":
		default:
			return fmt.Errorf("channel %d: chop must be one of div4, div3, div2, main", ch.Channel)
		}

		if ch.Mode == "current" && !hasScale {
			return fmt.Errorf("channel %d: current mode requires a board current scale", ch.Channel)
		}
		if ch.Mode == "current" && ch.Side == "high" {
			return fmt.Errorf("channel %d: current mode is low-side only", ch.Channel)
		}
		if ch.SlewRateControl && (ch.Chop == "div2" || ch.Chop == "main") {
			return fmt.Errorf("channel %d: slew_rate_control requires chop div4 or div3", ch.Channel)
		}

		if ch.Hit < 0 || ch.Hold < 0 {
			return fmt.Errorf("channel %d: hit and hold must be >= 0", ch.Channel)
		}
		if ch.Mode == "voltage" && (ch.Hit > 100 || ch.Hold > 100) {
			return fmt.Errorf("channel %d: duty setpoints must be <= 100%%", ch.Channel)
		}
	}

	// ------------------------------------------------------------
	// MONITOR
	// ------------------------------------------------------------

	if s.Monitor.IntervalMs < 0 {
		return fmt.Errorf("monitor: interval_ms must be >= 0")
	}

	return nil
}
