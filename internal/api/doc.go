// Package api implements the HTTP REST API and WebSocket server for the
// Tuya BLE bridge.
//
// This package provides:
//   - Read-only endpoints for the product database, paired devices, entities,
//     state history and BLE discoveries
//   - Entity commands, sharing the bridge's command path and ack codes
//   - WebSocket hub relaying entity.state_changed and device.event
//   - Optional HS256 bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Graceful Degradation
//
// The server operates without SQLite: history and discovery endpoints
// answer 503 while devices, entities and commands keep working.
package api
