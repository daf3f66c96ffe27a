// internal/config/normalize.go
package config

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	s := &cfg.Solenoid

	for i := range s.Channels {
		ch := &s.Channels[i]

		if ch.Side == "" {
			ch.Side = "low"
		}
		if ch.Chop == "" {
			ch.Chop = "div4"
		}
	}

	// No other normalization is performed here.
	// Unit scaling and register packing belong to the driver.
}
