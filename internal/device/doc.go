// Package device models controllable household devices and applies
// control commands to them.
//
// The package has three layers:
//   - Device: the persisted state of a device (status, value, color, tracks)
//   - Command: a parsed, typed control command (ParseCommand validates the
//     wire form; Apply mutates a device)
//   - Registry: loads a device, applies a command, persists the result,
//     and stamps LastUpdate on every mutation
//
// Device state is wire-visible: ToWire/Blob produce the flat JSON form
// embedded in DEVICE_INFO, DEVICE_UPDATED, and DEVICE_CHANGED messages.
package device
