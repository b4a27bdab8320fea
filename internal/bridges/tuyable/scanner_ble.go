package tuyable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// BLEScanner is a Scanner on a local Bluetooth adapter.
type BLEScanner struct {
	adapter *bluetooth.Adapter
	uuids   []bluetooth.UUID

	// mu serialises scans; the adapter runs one at a time.
	mu      sync.Mutex
	enabled bool
}

// NewBLEScanner returns a scanner on bluetooth.DefaultAdapter.
func NewBLEScanner() *BLEScanner {
	return &BLEScanner{
		adapter: bluetooth.DefaultAdapter,
		uuids: []bluetooth.UUID{
			bluetooth.New16BitUUID(ServiceUUIDTuya),
			bluetooth.New16BitUUID(ServiceUUIDTuyaAdv),
		},
	}
}

// Scan implements Scanner. Only adverts carrying a Tuya service UUID are
// reported.
func (s *BLEScanner) Scan(ctx context.Context, window time.Duration, fn func(Advertisement)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		if err := s.adapter.Enable(); err != nil {
			return fmt.Errorf("%w: %v", ErrScannerUnavailable, err)
		}
		s.enabled = true
	}

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.adapter.StopScan() //nolint:errcheck // Scan returns the error that matters
		case <-done:
		}
	}()

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		adv := Advertisement{
			Address: result.Address.String(),
			Name:    result.LocalName(),
			RSSI:    int(result.RSSI),
		}
		for _, u := range s.uuids {
			if result.HasServiceUUID(u) {
				adv.ServiceUUIDs = append(adv.ServiceUUIDs, u.String())
			}
		}
		if len(adv.ServiceUUIDs) > 0 {
			fn(adv)
		}
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scanning: %w", err)
	}
	return nil
}
