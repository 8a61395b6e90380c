package device

import (
	"context"
	"fmt"

	"github.com/lumina-home/lumina-core/internal/infrastructure/logging"
)

// Registry applies control commands to devices and persists the result.
// It is the single write path for device state: every mutation flows
// through Apply, which stamps LastUpdate and returns the updated record.
type Registry struct {
	repo   Repository
	logger *logging.Logger
}

// NewRegistry creates a device registry.
func NewRegistry(repo Repository, logger *logging.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: logger.With("component", "device"),
	}
}

// Get retrieves a device by ID.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	return r.repo.GetByID(ctx, id)
}

// List returns devices matching the filter.
func (r *Registry) List(ctx context.Context, f Filter) ([]Device, error) {
	return r.repo.List(ctx, f)
}

// Apply loads the device, applies the command, and persists the new
// state. The returned device is a copy; callers may serialize it without
// racing later mutations.
//
// Errors before the persistence step leave the device untouched:
// ErrDeviceNotFound for unknown IDs, command validation failures are the
// caller's responsibility (ParseCommand runs before Apply).
func (r *Registry) Apply(ctx context.Context, deviceID string, cmd Command) (*Device, error) {
	d, err := r.repo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	cmd.Apply(d)

	if err := r.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("persisting %s after %s: %w", deviceID, cmd.Name(), err)
	}

	r.logger.Info("device updated",
		"device_id", d.ID,
		"command", cmd.Name(),
		"status", d.Status,
		"value", d.Value,
	)

	return d.DeepCopy(), nil
}
