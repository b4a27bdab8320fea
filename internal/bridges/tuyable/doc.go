// Package tuyable implements the Tuya BLE bridge.
//
// The bridge does not talk to the radio itself. A BLE gateway owns the
// encrypted links and exchanges datapoint frames with the bridge over
// MQTT; the bridge turns those frames into entities and entity commands
// back into frames.
//
// # Architecture
//
//	┌─────────────┐  MQTT  ┌──────────────────────────────┐  MQTT  ┌────────────┐
//	│ BLE gateway │◄──────►│ Bridge                       │◄──────►│ Consumers  │
//	└─────────────┘ frames │  tuya.Device ─ Coordinator   │ state  └────────────┘
//	                       │        └─ entities           │ command
//	                       └──────────────────────────────┘
//
// Per device the bridge holds a tuya.Device session, a coordinator that
// debounces disconnects, and the entities materialised from the mapping
// tables. Every coordinator notification republishes the device's entity
// states; unchanged states are not republished.
//
// # Topics
//
// All topics live under the configured prefix (default "tuyable"):
//
//	{p}/gateway/{address}/report    gateway → bridge   datapoint frame
//	{p}/gateway/{address}/status    gateway → bridge   link state
//	{p}/gateway/{address}/write     bridge → gateway   datapoint frame
//	{p}/state/{device_id}/{key}     bridge → consumers retained state
//	{p}/command/{device_id}/{key}   consumers → bridge entity command
//	{p}/ack/{device_id}/{key}       bridge → consumers command result
//	{p}/event/{device_id}/{event}   bridge → consumers device event
//	{p}/discovery/{address}         bridge → consumers BLE advertisement
//	{p}/health                      bridge → consumers retained health
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package tuyable
