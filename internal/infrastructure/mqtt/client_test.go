package mqtt

import (
	"errors"
	"testing"
)

// Unit tests that do not require a broker. Broker-dependent tests live in
// integration_test.go behind the integration build tag.

func disconnectedClient() *Client {
	return &Client{
		subscriptions: make(map[string]subscription),
	}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("lumina/event/x", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}

	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("lumina/event/x", big, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("lumina/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := disconnectedClient()

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("lumina/event/+") {
		t.Error("HasSubscription() = true for untracked topic")
	}
}

func TestClose_NilClient(t *testing.T) {
	c := disconnectedClient()

	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client returned %v", err)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		got  string
		want string
	}{
		{topics.DeviceState("light-001"), "lumina/device/light-001/state"},
		{topics.Event("device_changed"), "lumina/event/device_changed"},
		{topics.SystemStatus(), "lumina/system/status"},
		{topics.AllDeviceStates(), "lumina/device/+/state"},
		{topics.AllEvents(), "lumina/event/+"},
		{topics.AllTopics(), "lumina/#"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}
