// Package influxdb records Tuya datapoint readings and BLE link quality
// as time series.
//
// It wraps influxdb-client-go v2 with a non-blocking batched write API.
// Only numeric datapoints (bool, value, enum, bitmap) are written; the
// bridge skips string and raw datapoints.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteDatapoint("bf1234", "DC:23:4D:11:22:33", 8, "enum", 1)
//
// # Error Handling
//
// Write errors arrive asynchronously through the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
