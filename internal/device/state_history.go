package device

import (
	"context"
	"time"
)

// StateHistoryRepository stores and retrieves entity state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordState records a published entity state.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Tuya device id (must exist in devices)
	//   - entityKey: Entity description key
	//   - state: JSON-encodable state value
	//   - source: Origin of the change (device, command)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordState(ctx context.Context, deviceID, entityKey string, state any, source string) error

	// GetHistory returns recent state history for the device, newest first.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than olderThan.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
