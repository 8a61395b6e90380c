// Package activity records device control history.
//
// Every applied command lands in the activity_log table with who issued
// it and the resulting device state. The Recorder consumes change events
// from the internal bus, so the control server does not block on
// persistence. When InfluxDB is enabled the same events are mirrored as
// time-series points for dashboard queries.
package activity
