// Package house models the household a hub serves: the house record
// itself and its ordered list of rooms. Devices reference rooms by name,
// so the room list is the source of truth for GET_ROOMS replies and
// room-filtered device queries.
package house
