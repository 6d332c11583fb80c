package companion

import (
	"context"
	"fmt"
)

const mavlinkMessages = "/mavlink2rest/mavlink/vehicles/1/components/1/messages/"

// Lights parameter and its PWM span.
const (
	LightsParameter  = "LIGHTS1_LEVEL"
	LightsParamMinUS = 1000
)

// SystemInfo returns the overall system description.
func (c *Client) SystemInfo(ctx context.Context) (any, error) {
	return c.getAny(ctx, "/system-information/system")
}

// CPUInfo returns CPU usage.
func (c *Client) CPUInfo(ctx context.Context) (any, error) {
	return c.getAny(ctx, "/system-information/system/cpu")
}

// MemoryInfo returns memory usage.
func (c *Client) MemoryInfo(ctx context.Context) (any, error) {
	return c.getAny(ctx, "/system-information/system/memory")
}

// DiskInfo returns disk usage.
func (c *Client) DiskInfo(ctx context.Context) (any, error) {
	return c.getAny(ctx, "/system-information/system/disk")
}

// NetworkInfo returns network interfaces.
func (c *Client) NetworkInfo(ctx context.Context) ([]Document, error) {
	return c.getList(ctx, "/system-information/system/network")
}

// MavlinkEndpoints returns the router endpoints configured on the companion.
func (c *Client) MavlinkEndpoints(ctx context.Context) ([]Document, error) {
	return c.getList(ctx, "/mavlink2rest/endpoints")
}

// VehicleHeartbeat returns the last HEARTBEAT seen by mavlink2rest.
func (c *Client) VehicleHeartbeat(ctx context.Context) (Document, error) {
	return c.getDocument(ctx, mavlinkMessages+"HEARTBEAT")
}

// Attitude returns the last ATTITUDE seen by mavlink2rest.
func (c *Client) Attitude(ctx context.Context) (Document, error) {
	return c.getDocument(ctx, mavlinkMessages+"ATTITUDE")
}

// Depth returns the last SCALED_PRESSURE2 seen by mavlink2rest.
func (c *Client) Depth(ctx context.Context) (Document, error) {
	return c.getDocument(ctx, mavlinkMessages+"SCALED_PRESSURE2")
}

// BatteryStatus returns the last BATTERY_STATUS seen by mavlink2rest.
func (c *Client) BatteryStatus(ctx context.Context) (Document, error) {
	return c.getDocument(ctx, mavlinkMessages+"BATTERY_STATUS")
}

// Parameters returns every autopilot parameter.
func (c *Client) Parameters(ctx context.Context) (Document, error) {
	return c.getDocument(ctx, "/mavlink2rest/helper/parameters")
}

// SetParameter writes one autopilot parameter.
func (c *Client) SetParameter(ctx context.Context, name string, value float64) (Document, error) {
	return c.post(ctx, "/mavlink2rest/helper/parameters", map[string]any{"id": name, "value": value})
}

// LightsParameterPWM maps a 0-100 level onto LIGHTS1_LEVEL microseconds (1000-2000).
func LightsParameterPWM(level int) (int, error) {
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("light level %d outside 0-100", level)
	}
	return LightsParamMinUS + level*10, nil
}

// SetLights sets the light level through the LIGHTS1_LEVEL parameter.
func (c *Client) SetLights(ctx context.Context, level int) (Document, error) {
	pwm, err := LightsParameterPWM(level)
	if err != nil {
		return nil, err
	}
	return c.SetParameter(ctx, LightsParameter, float64(pwm))
}

// Cameras lists cameras known to the camera manager.
func (c *Client) Cameras(ctx context.Context) ([]Document, error) {
	return c.getList(ctx, "/mavlink-camera-manager/cameras")
}

// VideoStreams lists configured video streams.
func (c *Client) VideoStreams(ctx context.Context) ([]Document, error) {
	return c.getList(ctx, "/mavlink-camera-manager/streams")
}

// PingDevices lists attached ping sonar devices.
func (c *Client) PingDevices(ctx context.Context) ([]Document, error) {
	return c.getList(ctx, "/ping/devices")
}

// PingDistance returns the latest distance measurement of one device.
func (c *Client) PingDistance(ctx context.Context, deviceID int) (Document, error) {
	return c.getDocument(ctx, fmt.Sprintf("/ping/devices/%d/distance", deviceID))
}

// Extensions lists installed BlueOS extensions.
func (c *Client) Extensions(ctx context.Context) ([]Document, error) {
	return c.getList(ctx, "/kraken/extensions/installed")
}

// InstallExtension asks BlueOS to install an extension image.
func (c *Client) InstallExtension(ctx context.Context, identifier, tag string) (Document, error) {
	if tag == "" {
		tag = "latest"
	}
	return c.post(ctx, "/kraken/extensions/install", map[string]any{"identifier": identifier, "tag": tag})
}

// HealthCheck reports whether the companion answers its system endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if _, err := c.SystemInfo(ctx); err != nil {
		c.logger.Warn("companion health check failed", "error", err)
		return false
	}
	return true
}
