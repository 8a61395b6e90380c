package wire

import (
	"strconv"
	"strings"
)

// Well-known field names and status values.
const (
	FieldStatus  = "status"
	FieldAction  = "action"
	FieldMessage = "message"

	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Raw is a pre-serialized JSON fragment. It is emitted verbatim when the
// containing message is serialized, and produced by Parse for nested
// objects and arrays.
type Raw string

// Message is a flat, order-preserving JSON object.
//
// The zero value is not usable; construct with NewMessage, OK, or
// ErrorMessage. Message is not safe for concurrent mutation.
type Message struct {
	keys   []string
	values map[string]any
}

// NewMessage creates an empty message.
func NewMessage() *Message {
	return &Message{
		values: make(map[string]any),
	}
}

// OK creates a success message: {"status":"OK","action":<action>}.
func OK(action string) *Message {
	return NewMessage().
		Set(FieldStatus, StatusOK).
		Set(FieldAction, action)
}

// ErrorMessage creates a failure message: {"status":"ERROR","message":<text>}.
func ErrorMessage(text string) *Message {
	return NewMessage().
		Set(FieldStatus, StatusError).
		Set(FieldMessage, text)
}

// Set stores a field, preserving first-insertion order. Setting an
// existing key overwrites the value but keeps the original position.
// Accepted value types: string, Raw, bool, nil, int, int64, and
// float64; anything else serializes as an empty string.
func (m *Message) Set(key string, value any) *Message {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the raw value for key and whether it was present.
func (m *Message) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether the field is present (including null fields).
func (m *Message) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// GetString returns the field as a string, or "" if absent or not a string.
func (m *Message) GetString(key string) string {
	if v, ok := m.values[key].(string); ok {
		return v
	}
	return ""
}

// GetInt returns the field as an int64. Float values are truncated.
// Returns 0 if the field is absent or not numeric.
func (m *Message) GetInt(key string) int64 {
	switch v := m.values[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

// GetBool returns the field as a bool, or false if absent or not boolean.
func (m *Message) GetBool(key string) bool {
	if v, ok := m.values[key].(bool); ok {
		return v
	}
	return false
}

// GetRaw returns a nested fragment, or "" if the field is absent or scalar.
func (m *Message) GetRaw(key string) Raw {
	if v, ok := m.values[key].(Raw); ok {
		return v
	}
	return ""
}

// Keys returns the field names in insertion order.
func (m *Message) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of fields.
func (m *Message) Len() int {
	return len(m.keys)
}

// String serializes the message as a single-line JSON object with fields
// in insertion order.
func (m *Message) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeQuoted(&b, key)
		b.WriteByte(':')
		writeValue(&b, m.values[key])
	}
	b.WriteByte('}')
	return b.String()
}

// writeValue serializes a single field value.
func writeValue(b *strings.Builder, value any) {
	switch v := value.(type) {
	case nil:
		b.WriteString("null")
	case string:
		writeQuoted(b, v)
	case Raw:
		b.WriteString(string(v))
	case bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int:
		b.WriteString(strconv.Itoa(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		writeQuoted(b, "")
	}
}

// Quote returns s as a JSON string literal with the required escapes.
// Useful when assembling Raw fragments by hand.
func Quote(s string) string {
	var b strings.Builder
	writeQuoted(&b, s)
	return b.String()
}

// writeQuoted writes s as a JSON string with the required escapes.
func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				b.WriteString(`\u`)
				const hexDigits = 4
				hex := strconv.FormatInt(int64(r), 16)
				for len(hex) < hexDigits {
					hex = "0" + hex
				}
				b.WriteString(hex)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
