// internal/config/config.go
package config

type Config struct {
	Solenoid SolenoidConfig `yaml:"solenoid"`
}

type SolenoidConfig struct {
	Transport TransportConfig `yaml:"transport"`
	Board     BoardConfig     `yaml:"board"`
	Device    DeviceConfig    `yaml:"device"`
	Channels  []ChannelConfig `yaml:"channels"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// ---- TRANSPORT ----

type TransportConfig struct {
	Port           string `yaml:"port"` // spireg name; empty = first port
	CommandPin     string `yaml:"command_pin"`
	EnablePin      string `yaml:"enable_pin"`
	FaultPin       string `yaml:"fault_pin"` // optional
	FaultActiveLow bool   `yaml:"fault_active_low"`
}

// ---- BOARD ----

// Exactly one of RrefKOhm and FullScaleMA sets the current scale; both zero
// is allowed for voltage-only setups.
type BoardConfig struct {
	RrefKOhm    float64 `yaml:"rref_kohm"`
	HalfScale   bool    `yaml:"half_scale"`
	FullScaleMA uint32  `yaml:"full_scale_ma"`

	MaxCurrentMA   uint32 `yaml:"max_current_ma"`   // 0 = no clamp
	MaxDutyPercent uint8  `yaml:"max_duty_percent"` // 0 = no clamp
}

// ---- DEVICE ----

type DeviceConfig struct {
	Clock80KHz bool `yaml:"clock_80khz"`
}

// ---- CHANNEL ----

type ChannelConfig struct {
	Channel uint8  `yaml:"channel"`
	Mode    string `yaml:"mode"` // current | voltage
	Side    string `yaml:"side"` // low | high; empty = low
	Chop    string `yaml:"chop"` // div4 | div3 | div2 | main; empty = div4

	Hit       float64 `yaml:"hit"`  // mA (current) or % duty (voltage)
	Hold      float64 `yaml:"hold"` // same unit as hit
	HitTimeMS float64 `yaml:"hit_time_ms"`

	HalfFullScale   bool `yaml:"half_full_scale"`
	TriggerFromPin  bool `yaml:"trigger_from_pin"`
	SlewRateControl bool `yaml:"slew_rate_control"`
	OpenLoad        bool `yaml:"open_load_detection"`
	PlungerDetect   bool `yaml:"plunger_detection"`
	HitCheck        bool `yaml:"hit_current_check"`

	Enable bool `yaml:"enable"` // turn the channel on after configuring
}

// ---- MONITOR ----

type MonitorConfig struct {
	IntervalMs int `yaml:"interval_ms"` // 0 = monitoring disabled
}
