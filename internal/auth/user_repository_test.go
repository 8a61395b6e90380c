package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, "alice", RoleUser)
	if user.ID == "" {
		t.Fatal("Create() should assign an ID")
	}

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want %q", got.Role, RoleUser)
	}
	if got.HouseID != "house-001" {
		t.Errorf("HouseID = %q, want %q", got.HouseID, "house-001")
	}
}

func TestUserRepository_GetMissing(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	seedTestUser(t, db, "alice", RoleUser)

	dup := &User{Username: "alice", PasswordHash: "hash", Role: RoleUser}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrUsernameExists) {
		t.Errorf("error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	if users, err := repo.List(context.Background()); err != nil || len(users) != 0 {
		t.Fatalf("List() on empty table = %v, %v; want empty slice", users, err)
	}

	seedTestUser(t, db, "alice", RoleUser)
	seedTestUser(t, db, "bob", RoleAdmin)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() returned %d users, want 2", len(users))
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, "alice", RoleUser)

	newHash, err := HashPassword("new-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if err := repo.UpdatePassword(context.Background(), user.ID, newHash); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	ok, err := VerifyPassword("new-password", got.PasswordHash)
	if err != nil || !ok {
		t.Errorf("new password did not verify: ok=%v err=%v", ok, err)
	}

	if err := repo.UpdatePassword(context.Background(), "usr-missing", newHash); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	user := seedTestUser(t, db, "alice", RoleUser)

	if err := repo.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByUsername(context.Background(), "alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("after delete, error = %v, want ErrUserNotFound", err)
	}
	if err := repo.Delete(context.Background(), user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("double delete error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Count(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	count, err := repo.Count(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("Count() = %d, %v; want 0, nil", count, err)
	}

	seedTestUser(t, db, "alice", RoleUser)
	count, err = repo.Count(context.Background())
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v; want 1, nil", count, err)
	}
}
