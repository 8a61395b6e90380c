package device

import (
	"strings"

	"github.com/lumina-home/lumina-core/internal/wire"
)

// Type classifies a device by what it physically is.
type Type string

// Known device types. The set is open: unknown types round-trip through
// persistence and the wire untouched.
const (
	TypeLight      Type = "light"
	TypeThermostat Type = "thermostat"
	TypeDoor       Type = "door"
	TypeCamera     Type = "camera"
	TypeSensor     Type = "sensor"
	TypeSpeaker    Type = "speaker"
	TypeTV         Type = "tv"
	TypeAppliance  Type = "appliance"
	TypeFireplace  Type = "fireplace"
	TypeWasher     Type = "washer"
)

// AllTypes returns the known device types.
func AllTypes() []Type {
	return []Type{
		TypeLight, TypeThermostat, TypeDoor, TypeCamera, TypeSensor,
		TypeSpeaker, TypeTV, TypeAppliance, TypeFireplace, TypeWasher,
	}
}

// Device is the persisted state of a controllable device.
//
// Value is a generic integer slot: brightness for lights, target
// temperature for thermostats, volume for speakers. Color doubles as the
// speaker command channel: a speaker command leaves "CMD:<NAME>" here so
// thin clients can render it without a schema change.
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    Type   `json:"type"`
	Room    string `json:"room"`
	HouseID string `json:"houseId"`
	Status  bool   `json:"status"`
	Value   int    `json:"value"`
	Color   string `json:"color"`

	// Tracks is the speaker playlist; empty for other device types.
	Tracks []string `json:"tracks"`

	// LastUpdate is the last mutation time in Unix milliseconds.
	LastUpdate int64 `json:"lastUpdate"`
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	cp := *d
	if d.Tracks != nil {
		cp.Tracks = make([]string, len(d.Tracks))
		copy(cp.Tracks, d.Tracks)
	}
	return &cp
}

// ToWire builds the flat wire message form of the device. Field order is
// fixed so serialization is deterministic.
func (d *Device) ToWire() *wire.Message {
	return wire.NewMessage().
		Set("id", d.ID).
		Set("name", d.Name).
		Set("type", string(d.Type)).
		Set("room", d.Room).
		Set("houseId", d.HouseID).
		Set("status", d.Status).
		Set("value", d.Value).
		Set("color", d.Color).
		Set("tracks", tracksBlob(d.Tracks)).
		Set("lastUpdate", d.LastUpdate)
}

// Blob returns the device as an opaque wire fragment, ready to embed in
// a containing message.
func (d *Device) Blob() wire.Raw {
	return wire.Raw(d.ToWire().String())
}

// ListBlob serializes a device slice as a JSON array fragment.
func ListBlob(devices []Device) wire.Raw {
	var b strings.Builder
	b.WriteByte('[')
	for i := range devices {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(devices[i].Blob()))
	}
	b.WriteByte(']')
	return wire.Raw(b.String())
}

// tracksBlob serializes a track list as a JSON array fragment.
func tracksBlob(tracks []string) wire.Raw {
	var b strings.Builder
	b.WriteByte('[')
	for i, track := range tracks {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(wire.Quote(track))
	}
	b.WriteByte(']')
	return wire.Raw(b.String())
}
