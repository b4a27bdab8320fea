// Package logging provides structured logging for the Tuya BLE bridge.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "/var/log/tuyable.log"
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	bridgeLog := logger.Component("bridge")
//	bridgeLog.Info("device connected", "device_id", id)
//
// Never log device local keys or uuids; use tuya.Credentials.String,
// which masks them.
package logging
