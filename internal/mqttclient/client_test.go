package mqttclient

import (
	"testing"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestNew_Validation(t *testing.T) {
	noop := func(string, []byte) {}

	if _, err := New(Options{Topics: []string{"a"}}, noop, nil); err == nil {
		t.Error("Expected error for empty broker")
	}
	if _, err := New(Options{Broker: "tcp://localhost:1883"}, noop, nil); err == nil {
		t.Error("Expected error for missing topics")
	}
	if _, err := New(Options{Broker: "tcp://localhost:1883", Topics: []string{"a"}}, nil, nil); err == nil {
		t.Error("Expected error for nil handler")
	}
}

func TestNew_DefaultsClientID(t *testing.T) {
	s, err := New(Options{Broker: "tcp://localhost:1883", Topics: []string{"a"}}, func(string, []byte) {}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if s.opts.ClientID == "" {
		t.Error("Expected generated client id")
	}
}

func TestThatDeliverForwardsPayload(t *testing.T) {
	var gotTopic string
	var gotPayload []byte

	s, err := New(Options{Broker: "tcp://localhost:1883", Topics: []string{"flespi/message/gw/devices/+"}}, func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = payload
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	s.deliver(fakeMessage{topic: "flespi/message/gw/devices/42", payload: []byte(`{"ident":"42"}`)})

	if gotTopic != "flespi/message/gw/devices/42" || string(gotPayload) != `{"ident":"42"}` {
		t.Errorf("Unexpected delivery topic=%q payload=%q", gotTopic, gotPayload)
	}
}

func TestDeviceFromTopic(t *testing.T) {
	cases := map[string]string{
		"flespi/message/gw/devices/42": "42",
		"devices/abc/telemetry":        "abc",
		"flespi/message/gw/devices/":   "",
		"beacons/B1":                   "",
	}
	for topic, want := range cases {
		if got := DeviceFromTopic(topic); got != want {
			t.Errorf("DeviceFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}
