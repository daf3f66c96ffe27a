// cmd/solenoidctl/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/max22200"
	"github.com/tamzrod/max22200/faultmon"
	"github.com/tamzrod/max22200/internal/config"
	"github.com/tamzrod/max22200/spidev"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) < 2 {
		log.Fatal("usage: solenoidctl <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal("config validation failed", zap.Error(err))
	}
	config.Normalize(cfg)

	s := cfg.Solenoid

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Transport + driver
	// --------------------

	tr := spidev.New(spidev.Config{
		Port:           s.Transport.Port,
		CommandPin:     s.Transport.CommandPin,
		EnablePin:      s.Transport.EnablePin,
		FaultPin:       s.Transport.FaultPin,
		FaultActiveLow: s.Transport.FaultActiveLow,
	})
	defer tr.Close()

	dev := max22200.NewWithBoard(tr, s.Board.Driver())
	dev.SetLogger(log.Named("max22200"))

	if err := dev.Initialize(); err != nil {
		log.Fatal("device initialization failed", zap.Error(err))
	}
	defer func() {
		if err := dev.Deinitialize(); err != nil {
			log.Error("device deinitialization failed", zap.Error(err))
		}
		stats := dev.Statistics()
		log.Info("session statistics",
			zap.Uint32("transfers", stats.TotalTransfers),
			zap.Uint32("failed", stats.FailedTransfers),
			zap.Uint32("fault_events", stats.FaultEvents),
			zap.Uint32("state_changes", stats.StateChanges),
			zap.Float64("success_rate", stats.SuccessRate()),
			zap.Duration("uptime", stats.Uptime))
	}()

	if s.Device.Clock80KHz {
		st := dev.CachedStatus()
		st.Clock80KHz = true
		if err := dev.WriteStatus(st); err != nil {
			log.Fatal("clock base configuration failed", zap.Error(err))
		}
	}

	// --------------------
	// Channel bring-up
	// --------------------

	var onMask uint8
	for _, ch := range s.Channels {
		if err := dev.ConfigureChannel(ch.Channel, ch.Driver()); err != nil {
			log.Fatal("channel configuration failed",
				zap.Uint8("channel", ch.Channel), zap.Error(err))
		}
		log.Info("channel configured",
			zap.Uint8("channel", ch.Channel),
			zap.String("mode", ch.Mode),
			zap.Float64("hit", ch.Hit),
			zap.Float64("hold", ch.Hold),
			zap.Float64("hit_time_ms", ch.HitTimeMS))
		if ch.Enable {
			onMask |= 1 << ch.Channel
		}
	}
	if onMask != 0 {
		if err := dev.SetChannelMask(onMask); err != nil {
			log.Fatal("channel enable failed", zap.Error(err))
		}
	}

	// --------------------
	// Fault monitoring (optional)
	// --------------------

	if s.Monitor.IntervalMs > 0 {
		mon, err := faultmon.New(faultmon.Config{
			Interval: time.Duration(s.Monitor.IntervalMs) * time.Millisecond,
		}, dev)
		if err != nil {
			log.Fatal("fault monitor setup failed", zap.Error(err))
		}

		out := make(chan faultmon.Snapshot)
		go mon.Run(ctx, out)

		go func() {
			for snap := range out {
				switch {
				case snap.Err != nil:
					log.Error("fault poll failed", zap.Error(snap.Err))
				case snap.Faulted():
					log.Warn("fault observed",
						zap.Uint8("ocp", snap.Faults.Overcurrent),
						zap.Uint8("hhf", snap.Faults.HitNotReached),
						zap.Uint8("olf", snap.Faults.OpenLoad),
						zap.Uint8("dpm", snap.Faults.PlungerMovement),
						zap.Bool("overtemperature", snap.Status.Overtemperature),
						zap.Bool("undervoltage", snap.Status.Undervoltage))
				}
			}
		}()
	}

	log.Info("running", zap.Uint8("channels_on", onMask))
	<-ctx.Done()
	log.Info("shutting down")
}
