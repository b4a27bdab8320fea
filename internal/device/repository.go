package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its Tuya device id.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts a device or refreshes its descriptive fields.
	// FirstSeen is kept from the existing row.
	Upsert(ctx context.Context, device *Device) error

	// Touch sets the last seen timestamp.
	// Returns ErrDeviceNotFound if the device does not exist.
	Touch(ctx context.Context, id string, seen time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, address, name, category, product_id, product_name,
	manufacturer, first_seen, last_seen`

// GetByID retrieves a device by its Tuya device id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts a device or refreshes its descriptive fields.
//
// Zero FirstSeen and LastSeen default to now. On conflict the stored
// FirstSeen wins and the device is filled back in from the row.
func (r *SQLiteRepository) Upsert(ctx context.Context, device *Device) error {
	if device.ID == "" || device.Category == "" || device.ProductID == "" {
		return fmt.Errorf("%w: id, category and product_id are required", ErrInvalidDevice)
	}
	if device.Address == "" {
		return ErrInvalidAddress
	}
	if device.Manufacturer == "" {
		device.Manufacturer = "Tuya"
	}

	now := time.Now().UTC()
	if device.FirstSeen.IsZero() {
		device.FirstSeen = now
	}
	if device.LastSeen.IsZero() {
		device.LastSeen = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address      = excluded.address,
			name         = excluded.name,
			category     = excluded.category,
			product_id   = excluded.product_id,
			product_name = excluded.product_name,
			manufacturer = excluded.manufacturer,
			last_seen    = excluded.last_seen`,
		device.ID,
		device.Address,
		device.Name,
		device.Category,
		device.ProductID,
		device.ProductName,
		device.Manufacturer,
		formatTime(device.FirstSeen),
		formatTime(device.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	stored, err := r.GetByID(ctx, device.ID)
	if err != nil {
		return err
	}
	device.FirstSeen = stored.FirstSeen
	return nil
}

// Touch sets the last seen timestamp.
func (r *SQLiteRepository) Touch(ctx context.Context, id string, seen time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET last_seen = ? WHERE id = ?", formatTime(seen), id)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var (
		d                   Device
		firstSeen, lastSeen string
	)
	err := s.Scan(&d.ID, &d.Address, &d.Name, &d.Category, &d.ProductID,
		&d.ProductName, &d.Manufacturer, &firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}
	if d.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if d.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	return &d, nil
}
