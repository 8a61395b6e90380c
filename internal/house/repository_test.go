package house

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the house schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "house-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE houses (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE rooms (
			house_id TEXT NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
			name     TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (house_id, name)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying house schema: %v", err)
	}

	return db
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(testDB(t))

	h := &House{
		ID:    "house-001",
		Name:  "Test Home",
		Rooms: []string{"Living Room", "Kitchen", "Bedroom"},
	}
	if err := repo.Create(context.Background(), h); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(context.Background(), "house-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Test Home" {
		t.Errorf("Name = %q, want %q", got.Name, "Test Home")
	}
	if len(got.Rooms) != 3 || got.Rooms[0] != "Living Room" || got.Rooms[2] != "Bedroom" {
		t.Errorf("Rooms = %v, want position order preserved", got.Rooms)
	}
}

func TestRepository_GetMissing(t *testing.T) {
	repo := NewRepository(testDB(t))

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrHouseNotFound) {
		t.Errorf("error = %v, want ErrHouseNotFound", err)
	}
}

func TestRepository_GetFirst(t *testing.T) {
	repo := NewRepository(testDB(t))

	if _, err := repo.GetFirst(context.Background()); !errors.Is(err, ErrHouseNotFound) {
		t.Fatalf("GetFirst() on empty table error = %v, want ErrHouseNotFound", err)
	}

	if err := repo.Create(context.Background(), &House{ID: "house-002", Name: "Second"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(context.Background(), &House{ID: "house-001", Name: "First"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetFirst(context.Background())
	if err != nil {
		t.Fatalf("GetFirst() error = %v", err)
	}
	if got.ID != "house-001" {
		t.Errorf("GetFirst() ID = %q, want house-001", got.ID)
	}
}

func TestRepository_AddRoom(t *testing.T) {
	repo := NewRepository(testDB(t))

	h := &House{ID: "house-001", Name: "Home", Rooms: []string{"Kitchen"}}
	if err := repo.Create(context.Background(), h); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.AddRoom(context.Background(), "house-001", "Attic"); err != nil {
		t.Fatalf("AddRoom() error = %v", err)
	}

	got, err := repo.Get(context.Background(), "house-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Rooms) != 2 || got.Rooms[1] != "Attic" {
		t.Errorf("Rooms = %v, want Attic appended last", got.Rooms)
	}
}
