// Package control implements the TCP control protocol.
//
// Clients hold a persistent connection and exchange newline-delimited
// wire messages. Each session walks a small state machine: connections
// start unauthenticated, LOGIN promotes them, and privileged actions
// re-validate the stored token on every use so an expired token demotes
// the session mid-stream.
//
// Sessions are handled by a fixed-size worker pool (config
// max_sessions). Accepted connections beyond the pool size queue until
// a worker frees up; this is the system's only admission control.
//
// Successful DEVICE_CONTROL commands publish one envelope to the
// internal bus. The server's own delivery loop fans those envelopes
// back out to every other authenticated session.
package control
