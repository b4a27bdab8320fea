package device

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tuyable/migrations"
)

// setupTestDB opens a migrated database in a temp dir.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "tuyable.db"),
		BusyTimeout: 5,
		Migrations:  migrations.FS,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

func testDevice(id, address, name string) *Device {
	return &Device{
		ID:          id,
		Address:     address,
		Name:        name,
		Category:    "szjqr",
		ProductID:   "3yqdo5yt",
		ProductName: "CUBETOUCH 1s",
	}
}

func TestSQLiteRepository_UpsertAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("bf1", "DC:23:4D:00:00:01", "Desk fingerbot")
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "bf1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Address != d.Address || got.Name != d.Name || got.ProductName != d.ProductName {
		t.Errorf("GetByID() = %+v, want %+v", got, d)
	}
	if got.Manufacturer != "Tuya" {
		t.Errorf("Manufacturer = %q, want default Tuya", got.Manufacturer)
	}
	if got.FirstSeen.IsZero() || got.LastSeen.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestSQLiteRepository_UpsertKeepsFirstSeen(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := testDevice("bf1", "DC:23:4D:00:00:01", "Old name")
	d.FirstSeen = first
	d.LastSeen = first
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	later := first.Add(time.Hour)
	update := testDevice("bf1", "DC:23:4D:00:00:01", "New name")
	update.FirstSeen = later
	update.LastSeen = later
	if err := repo.Upsert(ctx, update); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !update.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen after upsert = %s, want %s", update.FirstSeen, first)
	}

	got, err := repo.GetByID(ctx, "bf1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "New name" {
		t.Errorf("Name = %q, want %q", got.Name, "New name")
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %s, want %s", got.LastSeen, later)
	}
}

func TestSQLiteRepository_UpsertValidation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		device  *Device
		wantErr error
	}{
		{"missing id", testDevice("", "DC:23:4D:00:00:01", "x"), ErrInvalidDevice},
		{"missing address", testDevice("bf1", "", "x"), ErrInvalidAddress},
		{"missing category", &Device{ID: "bf1", Address: "a", ProductID: "p"}, ErrInvalidDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Upsert(ctx, tt.device); !errors.Is(err, tt.wantErr) {
				t.Errorf("Upsert() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, d := range []*Device{
		testDevice("bf2", "DC:23:4D:00:00:02", "Blinds"),
		testDevice("bf1", "DC:23:4D:00:00:01", "Alarm"),
	} {
		if err := repo.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(List()) = %d, want 2", len(devices))
	}
	if devices[0].Name != "Alarm" || devices[1].Name != "Blinds" {
		t.Errorf("List() order = %q, %q; want Alarm, Blinds", devices[0].Name, devices[1].Name)
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Touch(ctx, "missing", time.Now()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Touch() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Touch(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, testDevice("bf1", "DC:23:4D:00:00:01", "x")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	seen := time.Date(2030, 5, 6, 7, 8, 9, 123000000, time.UTC)
	if err := repo.Touch(ctx, "bf1", seen); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "bf1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %s, want %s", got.LastSeen, seen)
	}
}
