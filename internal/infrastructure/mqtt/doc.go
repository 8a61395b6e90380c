// Package mqtt provides optional MQTT fanout for Lumina Core.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The hub's primary transports (TCP control, UDP notify, WebSocket) do
// not depend on MQTT. When enabled, the hub mirrors device change events
// onto the broker so external integrations (Home Assistant, Node-RED,
// dashboards) can consume them without speaking the hub's own protocols.
//
//	Lumina Core → MQTT Broker → External integrations
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Mirror a device change event
//	topic := mqtt.Topics{}.Event("device_changed")
//	client.Publish(topic, []byte(`{"deviceId":"light-001"}`), 1, false)
package mqtt
