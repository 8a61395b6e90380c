// Package bus is the process-wide event hub connecting the device write
// path to every outbound transport.
//
// A successful device mutation is encoded once as an Envelope and
// published to the hub. Each transport (TCP control sessions, the UDP
// notify relay, the WebSocket bridge, the optional MQTT fanout, the
// activity recorder) holds its own Subscription with a buffered channel.
// Publish never blocks: a subscriber that cannot keep up drops events
// rather than stalling the publisher or its peers. Ordering is FIFO per
// subscription; no ordering is guaranteed across subscriptions.
package bus
