package mqtt

import "fmt"

// Topic prefixes for the Lumina MQTT namespace.
//
// All topics use the scheme: lumina/{category}/...
const (
	// TopicPrefix is the base for all Lumina topics.
	TopicPrefix = "lumina"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumina/system"
)

// Topics provides builders for Lumina MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("light-001")
//	// Returns: "lumina/device/light-001/state"
type Topics struct{}

// DeviceState returns the retained state topic for a device.
//
// Example: lumina/device/light-001/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// Event returns the topic for hub events.
//
// Example: lumina/event/device_changed
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// SystemStatus returns the hub status topic. The LWT is registered here
// so subscribers can distinguish a crash from a graceful shutdown.
//
// Example: lumina/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: lumina/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// AllEvents returns a pattern matching every hub event.
//
// Pattern: lumina/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Lumina topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: lumina/#
func (Topics) AllTopics() string {
	return "lumina/#"
}
