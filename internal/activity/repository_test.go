package activity

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE activity_log (
	    id         TEXT PRIMARY KEY,
	    username   TEXT NOT NULL,
	    device_id  TEXT NOT NULL,
	    action     TEXT NOT NULL,
	    detail     TEXT NOT NULL DEFAULT '',
	    created_at TEXT NOT NULL
	);
	CREATE INDEX idx_activity_created ON activity_log(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	return db
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := NewRepository(testDB(t))

	entry := Entry{
		Username: "admin",
		DeviceID: "light-001",
		Action:   "DEVICE_CHANGED",
		Detail:   `{"id":"light-001","status":true}`,
	}
	if err := repo.Create(context.Background(), &entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("Create() did not generate an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}
}

func TestList_FiltersAndPagination(t *testing.T) {
	repo := NewRepository(testDB(t))

	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		user := "admin"
		if i%2 == 1 {
			user = "guest"
		}
		entry := Entry{
			Username:  user,
			DeviceID:  fmt.Sprintf("light-%03d", i),
			Action:    "DEVICE_CHANGED",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(context.Background(), &entry); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	// Unfiltered, most recent first.
	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 {
		t.Errorf("Total = %d, want 5", result.Total)
	}
	if len(result.Entries) != 5 {
		t.Fatalf("len(Entries) = %d, want 5", len(result.Entries))
	}
	if result.Entries[0].DeviceID != "light-004" {
		t.Errorf("first entry = %s, want light-004 (most recent)", result.Entries[0].DeviceID)
	}

	// Filter by user.
	result, err = repo.List(context.Background(), Filter{Username: "guest"})
	if err != nil {
		t.Fatalf("List(guest) error = %v", err)
	}
	if result.Total != 2 {
		t.Errorf("guest Total = %d, want 2", result.Total)
	}
	for _, entry := range result.Entries {
		if entry.Username != "guest" {
			t.Errorf("entry %s has username %s, want guest", entry.ID, entry.Username)
		}
	}

	// Filter by device.
	result, err = repo.List(context.Background(), Filter{DeviceID: "light-002"})
	if err != nil {
		t.Fatalf("List(light-002) error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("device Total = %d, want 1", result.Total)
	}

	// Pagination.
	result, err = repo.List(context.Background(), Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List(paged) error = %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("paged len = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].DeviceID != "light-002" {
		t.Errorf("paged first = %s, want light-002", result.Entries[0].DeviceID)
	}
	if result.Total != 5 {
		t.Errorf("paged Total = %d, want 5", result.Total)
	}
}

func TestList_EmptyReturnsEmptySlice(t *testing.T) {
	repo := NewRepository(testDB(t))

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, want 0", result.Total)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := NewRepository(testDB(t))

	result, err := repo.List(context.Background(), Filter{Limit: 9999, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("Limit = %d, want clamped to 200", result.Limit)
	}
	if result.Offset != 0 {
		t.Errorf("Offset = %d, want clamped to 0", result.Offset)
	}
}
