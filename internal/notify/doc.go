// Package notify implements the UDP notification relay.
//
// Peers register their address with a REGISTER datagram and from then
// on receive every device change envelope as an unsolicited push. The
// channel is connectionless: there is no liveness tracking, so a
// crashed peer's entry stays in the observer set until it UNREGISTERs
// or the process restarts. Send failures are logged and never evict.
package notify
