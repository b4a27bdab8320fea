// Package entity turns Tuya datapoints into typed entities.
//
// Each platform (button, switch, select, binary_sensor, cover, lock) has a
// mapping type and a Table keyed by category. Table.Resolve picks the
// product-specific list when there is one and the category fallback
// otherwise. Setup functions create an entity per resolved mapping that is
// forced or whose datapoint the device has reported.
//
// Entities never own datapoints. They read the live value from the device
// session on demand and write through Datapoint.SetValue, which queues the
// write and returns at once.
package entity
