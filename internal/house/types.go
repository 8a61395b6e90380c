package house

import "errors"

// House represents a physical property managed by the hub.
// A typical deployment has exactly one.
type House struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Rooms []string `json:"rooms"`
}

// Sentinel errors for house operations.
var (
	ErrHouseNotFound = errors.New("house not found")
)
