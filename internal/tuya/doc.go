// Package tuya models a Tuya BLE device session above the radio link.
//
// A Device holds the device identity and a Datapoints collection of live
// values. Reports decoded from the gateway are applied with HandleReport;
// connection changes arrive through HandleConnected and HandleDisconnected.
// Datapoint.SetValue queues a write that Run encodes and hands to a
// Transport, so callers never block on the radio.
//
// Frames use the Tuya datapoint record layout (id, type, length, value);
// see Encode and Decode. Encryption and BLE framing belong to the gateway.
package tuya
