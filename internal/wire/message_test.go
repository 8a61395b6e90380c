package wire

import (
	"testing"
)

func TestMessage_OrderPreserved(t *testing.T) {
	msg := NewMessage().
		Set("zebra", 1).
		Set("alpha", 2).
		Set("mango", 3)

	want := `{"zebra":1,"alpha":2,"mango":3}`
	if got := msg.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMessage_OverwriteKeepsPosition(t *testing.T) {
	msg := NewMessage().
		Set("a", 1).
		Set("b", 2).
		Set("a", 9)

	want := `{"a":9,"b":2}`
	if got := msg.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMessage_Serialize(t *testing.T) {
	msg := NewMessage().
		Set("s", "hello").
		Set("i", int64(5)).
		Set("f", 2.5).
		Set("t", true).
		Set("n", nil).
		Set("raw", Raw(`{"x":1}`))

	want := `{"s":"hello","i":5,"f":2.5,"t":true,"n":null,"raw":{"x":1}}`
	if got := msg.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMessage_EscapesOnSerialize(t *testing.T) {
	msg := NewMessage().Set("text", "a\"b\\c\nd")

	want := `{"text":"a\"b\\c\nd"}`
	if got := msg.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestOK(t *testing.T) {
	msg := OK("PONG")

	if got := msg.GetString(FieldStatus); got != StatusOK {
		t.Errorf("status = %q, want %q", got, StatusOK)
	}
	if got := msg.GetString(FieldAction); got != "PONG" {
		t.Errorf("action = %q, want %q", got, "PONG")
	}
	if got := msg.String(); got != `{"status":"OK","action":"PONG"}` {
		t.Errorf("String() = %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage("something failed")

	if got := msg.GetString(FieldStatus); got != StatusError {
		t.Errorf("status = %q, want %q", got, StatusError)
	}
	if got := msg.GetString(FieldMessage); got != "something failed" {
		t.Errorf("message = %q", got)
	}
}

func TestMessage_GettersWithMissingFields(t *testing.T) {
	msg := NewMessage()

	if msg.GetString("missing") != "" {
		t.Error("GetString on missing field should return empty string")
	}
	if msg.GetInt("missing") != 0 {
		t.Error("GetInt on missing field should return 0")
	}
	if msg.GetBool("missing") {
		t.Error("GetBool on missing field should return false")
	}
	if msg.GetRaw("missing") != "" {
		t.Error("GetRaw on missing field should return empty Raw")
	}
	if msg.Has("missing") {
		t.Error("Has on missing field should return false")
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	original := `{"status":"OK","action":"DEVICE_UPDATED","deviceId":"light-001","device":{"id":"light-001","status":true},"changedBy":"admin"}`

	msg, err := Parse(original)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := msg.String(); got != original {
		t.Errorf("round trip = %q, want %q", got, original)
	}
}
