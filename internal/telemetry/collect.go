package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/transport"
	"github.com/rov-control/rovd/internal/vehicle"
)

// collect builds one packet. Each group is fetched independently; a failing
// group is left out without affecting the others.
func (a *Aggregator) collect(ctx context.Context, link VehicleSource, metrics MetricsSource) *Packet {
	ctx, cancel := context.WithTimeout(ctx, a.opts.CollectTimeout)
	defer cancel()

	packet := &Packet{
		Timestamp: a.clock.Now().UTC().Format(time.RFC3339Nano),
		Cameras:   []companion.Document{},
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		packet.Vehicle = a.collectVehicle(ctx, link, metrics)
	}()
	go func() {
		defer wg.Done()
		packet.System = a.collectSystem(ctx, metrics)
	}()
	go func() {
		defer wg.Done()
		packet.Sensors = a.collectSensors(ctx, metrics)
		if cams := a.collectCameras(ctx, metrics); cams != nil {
			packet.Cameras = cams
		}
	}()
	wg.Wait()

	if a.opts.Streams != nil {
		packet.Streams = a.opts.Streams.Descriptors()
	}
	return packet
}

func (a *Aggregator) collectVehicle(ctx context.Context, link VehicleSource, metrics MetricsSource) *VehicleView {
	if link != nil && link.Connected() {
		return vehicleFromState(link.Snapshot())
	}
	if metrics == nil {
		return nil
	}

	attitude, err := metrics.Attitude(ctx)
	if err != nil {
		a.logger.Warn("failed to get vehicle data", "error", err)
		return nil
	}
	battery, err := metrics.BatteryStatus(ctx)
	if err != nil {
		a.logger.Warn("failed to get vehicle data", "error", err)
		return nil
	}

	view := &VehicleView{Mode: vehicle.ModeUnknownName}
	if msg := attitude.Message(); msg != nil {
		roll, _ := msg.Float("roll")
		pitch, _ := msg.Float("pitch")
		yaw, _ := msg.Float("yaw")
		view.Attitude = vehicle.Attitude{Roll: round(roll, 3), Pitch: round(pitch, 3), Yaw: round(yaw, 3)}
	}
	if msg := battery.Message(); msg != nil {
		if cells, ok := msg["voltages"].([]any); ok && len(cells) > 0 {
			if mv, ok := cells[0].(float64); ok && mv != float64(transport.BatteryVoltageAbsent) {
				view.Battery.Voltage = round(mv/1000, 2)
			}
		}
		if remaining, ok := msg.Float("battery_remaining"); ok {
			view.Battery.RemainingPct = int(remaining)
		}
	}
	if depth, err := metrics.Depth(ctx); err == nil {
		if press, ok := depth.Message().Float("press_abs"); ok {
			view.Depth = round(vehicle.DepthFromPressure(press), 2)
		}
	}
	return view
}

func (a *Aggregator) collectSystem(ctx context.Context, metrics MetricsSource) *SystemView {
	if metrics == nil {
		return nil
	}
	var view SystemView
	var failed int
	if cpu, err := metrics.CPUInfo(ctx); err == nil {
		view.CPU = cpu
	} else {
		failed++
	}
	if mem, err := metrics.MemoryInfo(ctx); err == nil {
		view.Memory = mem
	} else {
		failed++
	}
	if disk, err := metrics.DiskInfo(ctx); err == nil {
		view.Disk = disk
	} else {
		failed++
	}
	if failed == 3 {
		a.logger.Warn("failed to get system data")
		return nil
	}
	return &view
}

// collectSensors returns nil when no ping sonar is installed.
func (a *Aggregator) collectSensors(ctx context.Context, metrics MetricsSource) *Sensors {
	if metrics == nil {
		return nil
	}
	devices, err := metrics.PingDevices(ctx)
	if err != nil || len(devices) == 0 {
		return nil
	}

	deviceID := 0
	if id, ok := devices[0].Float("id"); ok {
		deviceID = int(id)
	}
	distance, err := metrics.PingDistance(ctx, deviceID)
	if err != nil {
		return nil
	}
	mm, _ := distance.Float("distance")
	confidence, _ := distance.Float("confidence")
	return &Sensors{PingSonar: &PingSonar{DistanceMM: mm, Confidence: confidence}}
}

func (a *Aggregator) collectCameras(ctx context.Context, metrics MetricsSource) []companion.Document {
	if metrics == nil {
		return nil
	}
	cams, err := metrics.Cameras(ctx)
	if err != nil {
		return nil
	}
	return cams
}
