package tuyable

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/mqtt"
)

// gatewayTransport implements tuya.Transport by publishing frames to the
// gateway's write topic.
type gatewayTransport struct {
	client MQTTClient
	topics mqtt.Topics
}

// WriteDatapoints implements tuya.Transport.
func (t gatewayTransport) WriteDatapoints(ctx context.Context, address string, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.client.IsConnected() {
		return fmt.Errorf("publishing write for %s: MQTT disconnected", address)
	}

	payload, err := json.Marshal(GatewayWrite{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		DPS:       frame,
	})
	if err != nil {
		return fmt.Errorf("marshalling write: %w", err)
	}
	if err := t.client.Publish(t.topics.GatewayWrite(address), payload, 1, false); err != nil {
		return fmt.Errorf("publishing write for %s: %w", address, err)
	}
	return nil
}
