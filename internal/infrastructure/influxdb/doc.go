// Package influxdb provides optional time-series telemetry for Lumina Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring.
//
// When enabled in config, every applied device command is recorded as a
// point: which device changed, what command was applied, and the
// resulting status and value. The hub is fully functional with this
// package disabled; telemetry is strictly additive.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // ErrDisabled when influxdb.enabled is false
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("light-001", "ON", true, 80)
package influxdb
