package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records the state of a device after a control command
// was applied. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - deviceID: Device identifier (e.g., "light-001")
//   - command: The command that was applied (e.g., "ON", "SET_VALUE")
//   - status: On/off state after the command
//   - value: Generic value slot after the command (brightness, volume, ...)
func (c *Client) WriteDeviceState(deviceID, command string, status bool, value int) {
	if !c.IsConnected() {
		return
	}

	statusField := 0
	if status {
		statusField = 1
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"command":   command,
		},
		map[string]interface{}{
			"status": statusField,
			"value":  value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteControlEvent records who issued a control action. Used alongside
// the SQLite activity log for dashboard queries over time windows.
func (c *Client) WriteControlEvent(deviceID, action, changedBy string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"control_events",
		map[string]string{
			"device_id": deviceID,
			"action":    action,
		},
		map[string]interface{}{
			"changed_by": changedBy,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
