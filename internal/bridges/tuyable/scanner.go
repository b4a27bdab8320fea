package tuyable

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tuya BLE service UUIDs in 16-bit form. 0x1910 is the GATT service of
// paired devices; 0xA201 carries service data in pairing adverts.
const (
	ServiceUUIDTuya      = 0x1910
	ServiceUUIDTuyaAdv   = 0xA201
	bluetoothBaseUUIDFmt = "0000%04x-0000-1000-8000-00805f9b34fb"
)

// TuyaServiceUUIDs lists the service UUIDs that mark a Tuya BLE advert,
// in canonical 128-bit form.
var TuyaServiceUUIDs = []string{
	fullUUID(ServiceUUIDTuya),
	fullUUID(ServiceUUIDTuyaAdv),
}

func fullUUID(short uint16) string {
	return fmt.Sprintf(bluetoothBaseUUIDFmt, short)
}

// Advertisement is one BLE advertisement seen by a Scanner.
type Advertisement struct {
	Address      string
	Name         string
	RSSI         int
	ServiceUUIDs []string
}

// Scanner reports BLE advertisements.
type Scanner interface {
	// Scan listens for window, or until ctx is done, calling fn for each
	// advert. fn may be called from another goroutine.
	Scan(ctx context.Context, window time.Duration, fn func(Advertisement)) error
}

// TuyaServiceUUID returns the first Tuya service UUID adv carries.
func TuyaServiceUUID(adv Advertisement) (string, bool) {
	for _, u := range adv.ServiceUUIDs {
		u = strings.ToLower(u)
		for _, tuya := range TuyaServiceUUIDs {
			if u == tuya {
				return u, true
			}
		}
	}
	return "", false
}
