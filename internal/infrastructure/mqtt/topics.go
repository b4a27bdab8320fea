package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root used when none is configured.
const DefaultTopicPrefix = "tuyable"

// Topics builds the bridge's MQTT topics under a common prefix.
//
// Gateway topics are keyed by BLE address because the gateway knows the
// radio, not the cloud device id. Consumer-facing topics are keyed by
// device id and entity key.
//
//	topics := mqtt.NewTopics("tuyable")
//	topics.State("bf1234567890abcdef", "fingerbot_mode")
//	// Returns: "tuyable/state/bf1234567890abcdef/fingerbot_mode"
type Topics struct {
	Prefix string
}

// NewTopics returns a builder for prefix, or DefaultTopicPrefix when empty.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Gateway topics (BLE gateway <-> bridge)
// =============================================================================

// GatewayReport is where the gateway publishes decoded datapoint frames.
//
// Example: tuyable/gateway/DC:23:4D:11:22:33/report
func (t Topics) GatewayReport(address string) string {
	return fmt.Sprintf("%s/gateway/%s/report", t.prefix(), address)
}

// GatewayStatus is where the gateway publishes link state for a device.
//
// Example: tuyable/gateway/DC:23:4D:11:22:33/status
func (t Topics) GatewayStatus(address string) string {
	return fmt.Sprintf("%s/gateway/%s/status", t.prefix(), address)
}

// GatewayWrite is where the bridge publishes datapoint frames to send.
//
// Example: tuyable/gateway/DC:23:4D:11:22:33/write
func (t Topics) GatewayWrite(address string) string {
	return fmt.Sprintf("%s/gateway/%s/write", t.prefix(), address)
}

// AllGatewayReports matches every device's report topic.
func (t Topics) AllGatewayReports() string {
	return fmt.Sprintf("%s/gateway/+/report", t.prefix())
}

// AllGatewayStatus matches every device's status topic.
func (t Topics) AllGatewayStatus() string {
	return fmt.Sprintf("%s/gateway/+/status", t.prefix())
}

// =============================================================================
// Consumer topics (bridge <-> automation, dashboards)
// =============================================================================

// State is the retained entity state topic.
//
// Example: tuyable/state/bf1234567890abcdef/fingerbot_mode
func (t Topics) State(deviceID, key string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.prefix(), deviceID, key)
}

// Command is where consumers send entity commands.
func (t Topics) Command(deviceID, key string) string {
	return fmt.Sprintf("%s/command/%s/%s", t.prefix(), deviceID, key)
}

// Ack carries command acknowledgements.
func (t Topics) Ack(deviceID, key string) string {
	return fmt.Sprintf("%s/ack/%s/%s", t.prefix(), deviceID, key)
}

// Event carries out-of-band device events such as a fingerbot button press.
func (t Topics) Event(deviceID, event string) string {
	return fmt.Sprintf("%s/event/%s/%s", t.prefix(), deviceID, event)
}

// Discovery carries BLE advertisements seen by the scanner.
func (t Topics) Discovery(address string) string {
	return fmt.Sprintf("%s/discovery/%s", t.prefix(), address)
}

// Health is the retained bridge health topic.
func (t Topics) Health() string {
	return t.prefix() + "/health"
}

// BridgeStatus is the retained online/offline topic, also used for the LWT.
func (t Topics) BridgeStatus() string {
	return t.prefix() + "/bridge/status"
}

// AllCommands matches every entity command topic.
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", t.prefix())
}

// AllStates matches every entity state topic.
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", t.prefix())
}

// AllEvents matches every device event topic.
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+/+", t.prefix())
}

// =============================================================================
// Parsers
// =============================================================================

// ParseGatewayTopic extracts the address and kind ("report", "status",
// "write") from a gateway topic.
func (t Topics) ParseGatewayTopic(topic string) (address, kind string, err error) {
	parts, err := t.split(topic, "gateway", 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// ParseEntityTopic extracts device id and entity key from a state, command
// or ack topic of the given family.
func (t Topics) ParseEntityTopic(family, topic string) (deviceID, key string, err error) {
	parts, err := t.split(topic, family, 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// split checks "{prefix}/{family}/a/b..." and returns the n trailing parts.
// BLE addresses contain ':' but never '/', so a plain split is safe.
func (t Topics) split(topic, family string, n int) ([]string, error) {
	head := t.prefix() + "/" + family + "/"
	if !strings.HasPrefix(topic, head) {
		return nil, fmt.Errorf("%w: %q is not a %s topic", ErrTopicMismatch, topic, family)
	}
	parts := strings.Split(strings.TrimPrefix(topic, head), "/")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: %q has %d segments after %s, want %d", ErrTopicMismatch, topic, len(parts), family, n)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrTopicMismatch, topic)
		}
	}
	return parts, nil
}
