// Package browser implements the WebSocket bridge for web dashboards.
//
// The protocol layer is hand-rolled on raw TCP: the RFC 6455 upgrade
// handshake and the frame codec live in this package rather than behind
// a library, because the browser bridge is itself the deliverable. The
// gorilla/websocket dependency appears only in tests, as an independent
// client to prove interoperability.
//
// Each connected browser receives every device change envelope as one
// text frame. Inbound traffic is limited to application-level PING
// requests and the close frame.
package browser
