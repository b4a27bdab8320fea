// Package mqtt provides MQTT client connectivity for the Tuya BLE bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament on {prefix}/bridge/status
//
// # Architecture
//
// MQTT carries two kinds of traffic. The BLE gateway owns the radio link and
// exchanges decoded datapoint frames with the bridge; consumers read entity
// state and send entity commands.
//
//	BLE gateway <-> {prefix}/gateway/{address}/... <-> bridge <-> {prefix}/state|command|ack|event/...
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.Tuya.TopicPrefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllGatewayReports(), 1,
//	    func(topic string, payload []byte) error {
//	        address, _, err := topics.ParseGatewayTopic(topic)
//	        ...
//	    })
package mqtt
