// Tuyable - Tuya BLE bridge
//
// This is the main entry point for the tuyable bridge. It exposes paired
// Tuya BLE devices as entities over MQTT and a REST/WebSocket API, with a
// BLE gateway carrying the datapoint frames.
//
// Usage:
//
//	tuyable                          # run the bridge (same as "serve")
//	tuyable products                 # dump the product database
//	tuyable resolve --category ms --product ludzroix
//	tuyable scan --duration 20s      # list nearby Tuya BLE adverts
//	tuyable migrate down             # roll back the newest migration
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/tuyable.yaml"

func main() {
	// Cancel on Ctrl+C or SIGTERM so every subcommand shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// getConfigPath returns the configuration file path.
// Uses TUYABLE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TUYABLE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
