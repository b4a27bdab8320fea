package device

import (
	"encoding/json"
	"time"
)

// Device is a paired Tuya BLE device as persisted by the bridge.
type Device struct {
	// ID is the Tuya device id.
	ID string `json:"id"`

	// Address is the BLE MAC address, e.g. "DC:23:4D:11:22:33".
	Address string `json:"address"`

	// Name is the display name, normally the product name.
	Name string `json:"name"`

	Category    string `json:"category"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`

	// Manufacturer defaults to "Tuya".
	Manufacturer string `json:"manufacturer"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Discovery is a BLE advertisement aggregated by address.
type Discovery struct {
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	RSSI        int       `json:"rssi"`
	ServiceUUID string    `json:"service_uuid,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	SeenCount   int       `json:"seen_count"`
}

// StateHistoryEntry is one published entity state.
type StateHistoryEntry struct {
	ID        int64           `json:"id"`
	DeviceID  string          `json:"device_id"`
	EntityKey string          `json:"entity_key"`
	State     json.RawMessage `json:"state"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// State history source values.
const (
	// SourceDevice marks a state reported by the device.
	SourceDevice = "device"

	// SourceCommand marks a state produced by a bridge command.
	SourceCommand = "command"
)

// timeFormat is how timestamps are stored in SQLite. Fixed width keeps
// string order equal to time order.
const timeFormat = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// parseTime parses a stored timestamp, accepting second precision too.
func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeFormat, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse(time.RFC3339Nano, value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, err
}
