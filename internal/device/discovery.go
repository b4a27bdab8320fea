package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DiscoveryRepository stores BLE advertisements seen by the scanner.
type DiscoveryRepository interface {
	// RecordDiscovery upserts an advertisement, bumping seen_count.
	RecordDiscovery(ctx context.Context, d Discovery) error

	// ListDiscoveries returns every address seen, most recent first.
	ListDiscoveries(ctx context.Context) ([]Discovery, error)
}

// SQLiteDiscoveryRepository implements DiscoveryRepository using SQLite.
type SQLiteDiscoveryRepository struct {
	db *sql.DB
}

// NewSQLiteDiscoveryRepository creates a discovery repository on db.
func NewSQLiteDiscoveryRepository(db *sql.DB) *SQLiteDiscoveryRepository {
	return &SQLiteDiscoveryRepository{db: db}
}

// RecordDiscovery upserts an advertisement.
//
// A repeat sighting refreshes rssi and last_seen and increments seen_count.
// An empty name or service uuid does not overwrite a known one.
func (r *SQLiteDiscoveryRepository) RecordDiscovery(ctx context.Context, d Discovery) error {
	if d.Address == "" {
		return ErrInvalidAddress
	}
	seen := d.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	ts := formatTime(seen)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ble_discoveries (address, name, rssi, service_uuid, first_seen, last_seen, seen_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			name         = CASE WHEN excluded.name = '' THEN ble_discoveries.name ELSE excluded.name END,
			rssi         = excluded.rssi,
			service_uuid = CASE WHEN excluded.service_uuid = '' THEN ble_discoveries.service_uuid ELSE excluded.service_uuid END,
			last_seen    = excluded.last_seen,
			seen_count   = ble_discoveries.seen_count + 1`,
		d.Address, d.Name, d.RSSI, d.ServiceUUID, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("recording discovery: %w", err)
	}
	return nil
}

// ListDiscoveries returns every address seen, most recent first.
func (r *SQLiteDiscoveryRepository) ListDiscoveries(ctx context.Context) ([]Discovery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, name, rssi, service_uuid, first_seen, last_seen, seen_count
		FROM ble_discoveries
		ORDER BY last_seen DESC, address`)
	if err != nil {
		return nil, fmt.Errorf("querying discoveries: %w", err)
	}
	defer rows.Close()

	var out []Discovery
	for rows.Next() {
		var (
			d                   Discovery
			firstSeen, lastSeen string
		)
		if err := rows.Scan(&d.Address, &d.Name, &d.RSSI, &d.ServiceUUID, &firstSeen, &lastSeen, &d.SeenCount); err != nil {
			return nil, fmt.Errorf("scanning discovery: %w", err)
		}
		if d.FirstSeen, err = parseTime(firstSeen); err != nil {
			return nil, fmt.Errorf("parsing first_seen: %w", err)
		}
		if d.LastSeen, err = parseTime(lastSeen); err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating discoveries: %w", err)
	}
	return out, nil
}
