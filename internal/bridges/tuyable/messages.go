package tuyable

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-tuyable/internal/entity"
	"github.com/nerrad567/gray-logic-tuyable/internal/tuya"
)

// MQTT message types exchanged with the BLE gateway and with consumers.

// GatewayReport carries datapoints received from a device.
// Topic: {prefix}/gateway/{address}/report
type GatewayReport struct {
	// DPS is the raw datapoint frame; base64 in JSON.
	DPS []byte `json:"dps"`

	// ChangedByDevice is false when the report echoes a bridge write.
	// Absent means true.
	ChangedByDevice *bool `json:"changed_by_device,omitempty"`
}

// changedByDevice returns the flag with its default applied.
func (r GatewayReport) changedByDevice() bool {
	return r.ChangedByDevice == nil || *r.ChangedByDevice
}

// GatewayStatus carries the link state of a device.
// Topic: {prefix}/gateway/{address}/status
type GatewayStatus struct {
	Connected bool `json:"connected"`
	RSSI      int  `json:"rssi,omitempty"`
}

// GatewayWrite asks the gateway to send a datapoint frame.
// Topic: {prefix}/gateway/{address}/write
type GatewayWrite struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DPS       []byte    `json:"dps"`
}

// CommandMessage is sent by consumers to run an entity command.
// Topic: {prefix}/command/{device_id}/{key}
type CommandMessage struct {
	// ID correlates the command with its ack. Generated when empty.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// Command is one of the platform commands, e.g. "press", "turn_on",
	// "select_option".
	Command string `json:"command"`

	// Value is read by select_option and set_value.
	Value any `json:"value,omitempty"`

	// Source indicates where the command originated ("mqtt", "api").
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was queued for the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published after every command.
// Topic: {prefix}/ack/{device_id}/{key}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Key       string    `json:"key"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeEntityNotFound    = "ENTITY_NOT_FOUND"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeDeviceUnavailable = "DEVICE_UNAVAILABLE"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is the retained state of one entity.
// Topic: {prefix}/state/{device_id}/{key}
type StateMessage struct {
	DeviceID   string          `json:"device_id"`
	Key        string          `json:"key"`
	Platform   entity.Platform `json:"platform"`
	Timestamp  time.Time       `json:"timestamp"`
	Available  bool            `json:"available"`
	Value      any             `json:"value"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

// EventMessage is an out-of-band device event.
// Topic: {prefix}/event/{device_id}/{event}
type EventMessage struct {
	Event     string    `json:"event"`
	DeviceID  string    `json:"device_id"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// DiscoveryMessage announces a Tuya BLE advertisement.
// Topic: {prefix}/discovery/{address}
type DiscoveryMessage struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	RSSI        int       `json:"rssi"`
	ServiceUUID string    `json:"service_uuid"`
	Paired      bool      `json:"paired"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: {prefix}/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge           string       `json:"bridge"`
	Timestamp        time.Time    `json:"timestamp"`
	Status           HealthStatus `json:"status"`
	Version          string       `json:"version"`
	UptimeSeconds    int64        `json:"uptime_seconds"`
	DevicesManaged   int          `json:"devices_managed"`
	DevicesConnected int          `json:"devices_connected"`
	Reason           string       `json:"reason,omitempty"`
}

// NewCommandMessage creates a command with a fresh id.
func NewCommandMessage(command string, value any, source string) CommandMessage {
	return CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Command:   command,
		Value:     value,
		Source:    source,
	}
}

// NewAckMessage creates an acknowledgment for cmd. A nil err is accepted.
func NewAckMessage(cmd CommandMessage, deviceID, key string, err error) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Key:       key,
		Status:    AckAccepted,
	}
	if err != nil {
		ack.Status = AckFailed
		ack.Error = &AckError{Code: ErrorCode(err), Message: err.Error()}
	}
	return ack
}

// ErrorCode maps a command error onto its ack code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrEntityNotFound):
		return ErrCodeEntityNotFound
	case errors.Is(err, entity.ErrUnsupportedCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, entity.ErrInvalidCommandValue),
		errors.Is(err, entity.ErrUnknownOption),
		errors.Is(err, tuya.ErrInvalidValue),
		errors.Is(err, ErrInvalidPayload):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrDeviceUnavailable):
		return ErrCodeDeviceUnavailable
	default:
		return ErrCodeBridgeError
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, managed, connected int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:           bridgeID,
		Timestamp:        time.Now().UTC(),
		Status:           status,
		Version:          version,
		UptimeSeconds:    int64(time.Since(startTime).Seconds()),
		DevicesManaged:   managed,
		DevicesConnected: connected,
	}
}
