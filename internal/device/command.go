package device

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandKind discriminates the typed command variant.
type CommandKind int

const (
	// KindOn switches the device on.
	KindOn CommandKind = iota
	// KindOff switches the device off.
	KindOff
	// KindToggle flips the on/off status.
	KindToggle
	// KindSetValue sets the integer value slot.
	KindSetValue
	// KindSetColor sets the color string.
	KindSetColor
	// KindSpeaker issues a playback command to a speaker.
	KindSpeaker
)

// Wire command names.
const (
	CmdOn         = "ON"
	CmdOff        = "OFF"
	CmdToggle     = "TOGGLE"
	CmdSetValue   = "SET_VALUE"
	CmdSetColor   = "SET_COLOR"
	CmdSpeakerCmd = "SPEAKER_CMD"
)

// speakerSentinelPrefix marks a speaker command stored in the color slot.
const speakerSentinelPrefix = "CMD:"

// Command is a validated control command. Exactly the fields relevant to
// Kind are populated.
type Command struct {
	Kind    CommandKind
	Value   int    // KindSetValue
	Color   string // KindSetColor
	Speaker string // KindSpeaker, upper-cased playback command
}

// Name returns the wire command name.
func (c Command) Name() string {
	switch c.Kind {
	case KindOn:
		return CmdOn
	case KindOff:
		return CmdOff
	case KindToggle:
		return CmdToggle
	case KindSetValue:
		return CmdSetValue
	case KindSetColor:
		return CmdSetColor
	case KindSpeaker:
		return CmdSpeakerCmd
	}
	return ""
}

// ParseCommand validates the wire form of a DEVICE_CONTROL request.
//
// value may be an int64 (native wire number) or a numeric string; any
// other SET_VALUE payload fails with ErrInvalidValue before the device
// is touched. Unknown command names fail with ErrUnknownCommand.
func ParseCommand(name string, value any, color, speakerCmd string) (Command, error) {
	switch name {
	case CmdOn:
		return Command{Kind: KindOn}, nil
	case CmdOff:
		return Command{Kind: KindOff}, nil
	case CmdToggle:
		return Command{Kind: KindToggle}, nil

	case CmdSetValue:
		v, err := parseIntValue(value)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindSetValue, Value: v}, nil

	case CmdSetColor:
		if color == "" {
			return Command{}, fmt.Errorf("%w: color", ErrMissingField)
		}
		return Command{Kind: KindSetColor, Color: color}, nil

	case CmdSpeakerCmd:
		if speakerCmd == "" {
			return Command{}, fmt.Errorf("%w: speakerCommand", ErrMissingField)
		}
		return Command{Kind: KindSpeaker, Speaker: strings.ToUpper(speakerCmd)}, nil

	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

// parseIntValue accepts native wire integers and numeric strings.
func parseIntValue(value any) (int, error) {
	switch v := value.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case float64:
		// A fractional value is not an integer.
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%w: value", ErrMissingField)
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
}

// Apply mutates the device according to the command and stamps
// LastUpdate. Speaker commands write the CMD:<NAME> sentinel into the
// color slot and leave on/off status untouched.
func (c Command) Apply(d *Device) {
	switch c.Kind {
	case KindOn:
		d.Status = true
	case KindOff:
		d.Status = false
	case KindToggle:
		d.Status = !d.Status
	case KindSetValue:
		d.Value = c.Value
	case KindSetColor:
		d.Color = c.Color
	case KindSpeaker:
		d.Color = speakerSentinelPrefix + c.Speaker
	}
	d.LastUpdate = time.Now().UnixMilli()
}
