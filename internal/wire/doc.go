// Package wire implements the flat JSON message format spoken by every
// Lumina transport (TCP control, UDP notify, WebSocket bridge).
//
// A wire message is a single-level JSON object. Values may be strings,
// numbers, booleans, or null. Nested objects and arrays are not
// interpreted: they are captured as opaque Raw fragments and re-emitted
// verbatim, which lets pre-serialized device payloads travel through a
// message untouched. Field insertion order is preserved on both parse
// and serialize, so a message round-trips byte-compatibly apart from
// whitespace.
//
// Usage:
//
//	msg, err := wire.Parse(line)
//	if err != nil { ... }          // wraps wire.ErrMalformedPayload
//	action := msg.GetString("action")
//
//	reply := wire.OK("PONG").Set("timestamp", time.Now().UnixMilli())
//	fmt.Fprintln(conn, reply.String())
package wire
