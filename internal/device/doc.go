// Package device persists what the bridge knows about Tuya BLE devices.
//
// # Architecture
//
//	┌──────────────────┐    ┌──────────────────────────────┐
//	│     Registry     │───▶│  SQLiteRepository (devices)  │
//	│ • in-memory cache│    └──────────────────────────────┘
//	│ • write-through  │    ┌──────────────────────────────┐
//	└──────────────────┘    │ SQLiteDiscoveryRepository    │
//	                        │   (ble_discoveries)          │
//	                        └──────────────────────────────┘
//	                        ┌──────────────────────────────┐
//	                        │ SQLiteStateHistoryRepository │
//	                        │   (entity_state_history)     │
//	                        └──────────────────────────────┘
//
// Devices are keyed by Tuya device id and upserted by the bridge on
// startup. Discoveries are keyed by BLE address and are written by the
// advertisement scanner whether or not the device is paired. State
// history rows reference devices and are removed with them.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
package device
