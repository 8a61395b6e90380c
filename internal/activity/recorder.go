package activity

import (
	"context"

	"github.com/lumina-home/lumina-core/internal/bus"
	"github.com/lumina-home/lumina-core/internal/infrastructure/influxdb"
	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
	"github.com/lumina-home/lumina-core/internal/wire"
)

// Recorder persists device change events from the internal bus.
//
// Recording happens off the control path: the control server publishes
// to the bus and moves on, the Recorder catches up at its own pace.
// A nil influx client disables telemetry mirroring.
type Recorder struct {
	repo   Repository
	influx *influxdb.Client
	logger *logging.Logger
}

// NewRecorder creates a Recorder. influx may be nil.
func NewRecorder(repo Repository, influx *influxdb.Client, logger *logging.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		influx: influx,
		logger: logger.With("component", "activity"),
	}
}

// Record persists a single entry and mirrors it to InfluxDB when enabled.
func (r *Recorder) Record(ctx context.Context, entry *Entry) error {
	if err := r.repo.Create(ctx, entry); err != nil {
		return err
	}

	if r.influx != nil {
		r.influx.WriteControlEvent(entry.DeviceID, entry.Action, entry.Username)
	}

	return nil
}

// Run consumes envelopes from the subscription until the context is
// cancelled or the subscription is closed. Intended to run as a goroutine:
//
//	sub := hub.Subscribe("activity", bus.DefaultBuffer)
//	go recorder.Run(ctx, sub)
func (r *Recorder) Run(ctx context.Context, sub *bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			r.record(ctx, env)
		}
	}
}

// record writes one envelope to the log and, when telemetry is enabled,
// mirrors the device state carried in the envelope.
func (r *Recorder) record(ctx context.Context, env bus.Envelope) {
	entry := Entry{
		Username: env.ChangedBy,
		DeviceID: env.DeviceID,
		Action:   env.Action,
		Detail:   string(env.Device),
	}

	if err := r.repo.Create(ctx, &entry); err != nil {
		r.logger.Error("recording activity entry",
			"device_id", env.DeviceID,
			"error", err,
		)
		return
	}

	if r.influx == nil {
		return
	}

	r.influx.WriteControlEvent(env.DeviceID, env.Action, env.ChangedBy)

	// The envelope carries the device snapshot as a JSON blob. Parse out
	// status and value for the state measurement; skip on malformed blobs.
	msg, err := wire.Parse(string(env.Device))
	if err != nil {
		return
	}
	status := msg.GetBool("status")
	value := msg.GetInt("value")
	r.influx.WriteDeviceState(env.DeviceID, env.Action, status, int(value))
}
