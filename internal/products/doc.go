// Package products is the static Tuya BLE product database, keyed by
// category and product id.
package products
