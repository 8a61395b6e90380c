package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Filter narrows List queries. Zero-value fields are ignored.
type Filter struct {
	HouseID string
	Room    string
	Type    Type
}

// Repository defines the interface for device persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context, f Filter) ([]Device, error)
	Insert(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed device repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "id, name, type, room, house_id, status, value, color, tracks, last_update"

// GetByID retrieves a device by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	return scanDeviceFrom(row)
}

// List returns devices matching the filter, ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices WHERE 1=1"
	var args []any

	if f.HouseID != "" {
		query += " AND house_id = ?"
		args = append(args, f.HouseID)
	}
	if f.Room != "" {
		query += " AND room = ?"
		args = append(args, f.Room)
	}
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, string(f.Type))
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDeviceFrom(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Insert adds a new device.
func (r *SQLiteRepository) Insert(ctx context.Context, d *Device) error {
	tracks, err := marshalTracks(d.Tracks)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, type, room, house_id, status, value, color, tracks, last_update)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, string(d.Type), d.Room, d.HouseID,
		boolToInt(d.Status), d.Value, d.Color, tracks, d.LastUpdate,
	)
	if err != nil {
		return fmt.Errorf("inserting device %s: %w", d.ID, err)
	}
	return nil
}

// Update persists a device's mutable state.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	tracks, err := marshalTracks(d.Tracks)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, type = ?, room = ?, status = ?, value = ?,
		 color = ?, tracks = ?, last_update = ? WHERE id = ?`,
		d.Name, string(d.Type), d.Room, boolToInt(d.Status), d.Value,
		d.Color, tracks, d.LastUpdate, d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", d.ID, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Count returns the total number of devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDeviceFrom scans a device from any scanner (Row or Rows).
func scanDeviceFrom(s scanner) (*Device, error) {
	var d Device
	var typ, tracks string
	var status int

	err := s.Scan(&d.ID, &d.Name, &typ, &d.Room, &d.HouseID,
		&status, &d.Value, &d.Color, &tracks, &d.LastUpdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.Type = Type(typ)
	d.Status = status != 0
	if err := json.Unmarshal([]byte(tracks), &d.Tracks); err != nil {
		return nil, fmt.Errorf("decoding tracks for %s: %w", d.ID, err)
	}
	if d.Tracks == nil {
		d.Tracks = []string{}
	}

	return &d, nil
}

// marshalTracks encodes the track list as a JSON column value.
func marshalTracks(tracks []string) (string, error) {
	if tracks == nil {
		tracks = []string{}
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("encoding tracks: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
