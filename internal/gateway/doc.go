// Package gateway supervises a BLE gateway daemon running on the same host.
//
// The bridge never touches the radio itself: a gateway process owns the
// Bluetooth link and exchanges datapoint frames over MQTT. When the gateway
// is installed locally, tuyable can run it as a child process:
//
//   - SIGTERM to the whole process group on Stop, SIGKILL after a timeout
//   - Restart on unexpected exit with exponential backoff
//   - Backoff reset once a run has stayed up for StableThreshold
//   - stdout/stderr forwarded line by line to the logger
//
// Example usage:
//
//	sup := gateway.NewSupervisor(gateway.Config{
//	    Binary: "/usr/local/bin/tuya-ble-gateway",
//	    Args:   []string{"--broker", "tcp://localhost:1883"},
//	})
//	sup.SetLogger(log)
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package gateway
