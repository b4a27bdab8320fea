package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementDatapoint = "tuya_datapoint"
	MeasurementLink      = "ble_link"
)

// WriteDatapoint records one numeric datapoint reading.
//
// Bool datapoints are written as 0/1 by the caller. The write is
// non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Tuya device id
//   - address: BLE MAC of the device
//   - dpID: datapoint id (1-255)
//   - dpType: datapoint type name ("bool", "value", "enum", "bitmap")
//   - value: the reading
//
// Example:
//
//	client.WriteDatapoint("bf1234", "DC:23:4D:11:22:33", 8, "enum", 0)
func (c *Client) WriteDatapoint(deviceID, address string, dpID uint8, dpType string, value float64) {
	c.WriteDatapointWithTime(deviceID, address, dpID, dpType, value, time.Now())
}

// WriteDatapointWithTime is WriteDatapoint with an explicit timestamp.
func (c *Client) WriteDatapointWithTime(deviceID, address string, dpID uint8, dpType string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementDatapoint,
		map[string]string{
			"device_id": deviceID,
			"address":   address,
			"dp_id":     strconv.Itoa(int(dpID)),
			"dp_type":   dpType,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteLinkQuality records the gateway-reported link state of a device.
func (c *Client) WriteLinkQuality(address string, rssi int, connected bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementLink,
		map[string]string{"address": address},
		map[string]interface{}{
			"rssi":      rssi,
			"connected": connected,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
