package house

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository defines the interface for house persistence operations.
type Repository interface {
	Get(ctx context.Context, id string) (*House, error)

	// GetFirst returns the first house by ID order. New registrations
	// are assigned to it when no house is specified.
	GetFirst(ctx context.Context) (*House, error)

	Create(ctx context.Context, h *House) error
	AddRoom(ctx context.Context, houseID, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed house repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a house and its rooms by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*House, error) {
	return r.getHouse(ctx, "SELECT id, name FROM houses WHERE id = ?", id)
}

// GetFirst retrieves the first house by ID order.
func (r *SQLiteRepository) GetFirst(ctx context.Context) (*House, error) {
	return r.getHouse(ctx, "SELECT id, name FROM houses ORDER BY id LIMIT 1")
}

// Create inserts a house and its rooms.
func (r *SQLiteRepository) Create(ctx context.Context, h *House) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO houses (id, name) VALUES (?, ?)", h.ID, h.Name); err != nil {
		return fmt.Errorf("inserting house %s: %w", h.ID, err)
	}
	for i, room := range h.Rooms {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rooms (house_id, name, position) VALUES (?, ?, ?)",
			h.ID, room, i); err != nil {
			return fmt.Errorf("inserting room %s: %w", room, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing house: %w", err)
	}
	return nil
}

// AddRoom appends a room to a house.
func (r *SQLiteRepository) AddRoom(ctx context.Context, houseID, name string) error {
	var position int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position)+1, 0) FROM rooms WHERE house_id = ?",
		houseID).Scan(&position)
	if err != nil {
		return fmt.Errorf("finding room position: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO rooms (house_id, name, position) VALUES (?, ?, ?)",
		houseID, name, position); err != nil {
		return fmt.Errorf("inserting room %s: %w", name, err)
	}
	return nil
}

// getHouse scans a house row and loads its rooms.
func (r *SQLiteRepository) getHouse(ctx context.Context, query string, args ...any) (*House, error) {
	var h House
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&h.ID, &h.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHouseNotFound
		}
		return nil, fmt.Errorf("scanning house: %w", err)
	}

	rooms, err := r.listRooms(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	h.Rooms = rooms
	return &h, nil
}

// listRooms returns room names for a house in position order.
func (r *SQLiteRepository) listRooms(ctx context.Context, houseID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM rooms WHERE house_id = ? ORDER BY position", houseID)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	rooms := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}
