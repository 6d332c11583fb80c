// Command rovsim is a simulated ArduSub vehicle. It sends MAVLink over UDP to
// the address rovd listens on and answers arm, disarm and mode commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rov-control/rovd/internal/sim"
	"github.com/rov-control/rovd/internal/transport/mavudp"
)

func main() {
	target := pflag.StringP("target", "t", "127.0.0.1:14550", "address rovd listens on for MAVLink")
	rate := pflag.Duration("rate", 200*time.Millisecond, "telemetry interval")
	charge := pflag.Float64("charge", 1, "initial battery state of charge, 0-1")
	minArm := pflag.Int("min-arm-pct", sim.DefaultOptions().MinArmPct, "battery percentage below which arming is denied")
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*target, *rate, *charge, *minArm, logger); err != nil {
		fmt.Fprintf(os.Stderr, "rovsim: %v\n", err)
		os.Exit(1)
	}
}

func run(target string, rate time.Duration, charge float64, minArm int, logger *slog.Logger) error {
	tr, err := mavudp.Open(mavudp.Config{
		Address:     target,
		Client:      true,
		SystemID:    1,
		ComponentID: 1,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer tr.Close()

	opts := sim.DefaultOptions()
	opts.MinArmPct = minArm
	vehicle := sim.NewVehicle(opts)
	vehicle.SetCharge(charge)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("simulated vehicle running", "target", target, "rate", rate)
	if err := sim.Run(ctx, vehicle, tr, sim.RunOptions{TelemetryInterval: rate, Logger: logger}); err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	logger.Info("simulated vehicle stopped")
	return nil
}
